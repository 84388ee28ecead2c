// Package httpx holds the JSON envelope and request helpers shared by BeeTrack's HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrEmptyBody is returned by DecodeJSON for a missing body.
var ErrEmptyBody = errors.New("empty body")

// APIError is the error object of every non-2xx JSON response.
// Field is set when a single input field caused the error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSON writes v with status. Responses are never cached.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Write writes e inside the {"error": ...} envelope.
func Write(w http.ResponseWriter, status int, e APIError) {
	WriteJSON(w, status, errorResponse{Error: e})
}

// WriteError is Write with inline code and message.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, APIError{Code: code, Message: msg})
}

// DecodeJSON decodes exactly one JSON object of at most maxBytes into dst.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrEmptyBody
	}
	defer func() { _ = r.Body.Close() }()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
