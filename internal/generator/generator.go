// Package generator defines the answer-writing backends.
package generator

import (
	"context"
	"errors"
)

// ErrRateLimited marks a backend refusal caused by quota or request rate.
var ErrRateLimited = errors.New("generator rate limited")

// Generator writes an answer for a fully assembled prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// IsRateLimited reports whether err was caused by a rate limit.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
