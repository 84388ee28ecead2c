package password

import (
	"fmt"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int

	// RequireCharClasses demands at least one upper, lower, digit and symbol.
	RequireCharClasses bool
	// MinUniqueChars is the minimum number of distinct runes (0 disables).
	MinUniqueChars int
	// RejectSequential rejects passwords that are a run of an alphabet or digit sequence.
	RejectSequential bool
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a strong baseline for interactive logins.
func DefaultConfig() Config {
	// CPU-aware parallelism clamped to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,      // 64 MiB
			Iterations:  3,              // reasonable default for interactive logins
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:          8,
			MaxLength:          256,
			RequireCharClasses: true,
			MinUniqueChars:     4,
			RejectSequential:   true,
			RejectVeryWeak:     true,
		},
	}
}

// Check validates parameter and policy bounds. It returns an error wrapping ErrConfig.
func (c Config) Check() error {
	p := c.Params
	switch {
	case p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024:
		return fmt.Errorf("%w: argon2 memory_kib out of range [8192..1048576]", ErrConfig)
	case p.Iterations < 1 || p.Iterations > 20:
		return fmt.Errorf("%w: argon2 iterations out of range [1..20]", ErrConfig)
	case p.Parallelism < 1 || p.Parallelism > 64:
		return fmt.Errorf("%w: argon2 parallelism out of range [1..64]", ErrConfig)
	case p.SaltLength < 8 || p.SaltLength > 64:
		return fmt.Errorf("%w: argon2 salt_len out of range [8..64]", ErrConfig)
	case p.KeyLength < 16 || p.KeyLength > 64:
		return fmt.Errorf("%w: argon2 key_len out of range [16..64]", ErrConfig)
	}

	if c.Policy.MinLength < 1 || c.Policy.MaxLength < 1 {
		return fmt.Errorf("%w: password length bounds must be positive", ErrConfig)
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"%w: min_len(%d) > max_len(%d)",
			ErrConfig,
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	if c.Policy.MinUniqueChars < 0 {
		return fmt.Errorf("%w: min unique chars must not be negative", ErrConfig)
	}

	return nil
}
