package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusUnauthorized, "invalid_token", "invalid token")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "invalid_token", body["error"]["code"])
	assert.Equal(t, "invalid token", body["error"]["message"])
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ok", body: `{"name":"hive"}`},
		{name: "unknown field", body: `{"name":"hive","extra":1}`, wantErr: true},
		{name: "trailing data", body: `{"name":"hive"}{"name":"x"}`, wantErr: true},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", 200) + `"}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSON(rr, req, 64, &dst)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hive", dst.Name)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(req))

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer")
	assert.Empty(t, BearerToken(req))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.0.0.5", ClientIPString(req, false))
	assert.Equal(t, "203.0.113.7", ClientIPString(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIPString(req, true))

	req.RemoteAddr = "garbage"
	assert.Empty(t, ClientIPString(req, false))
}
