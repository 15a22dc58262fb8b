package domain

import (
	"errors"
	"sort"
	"strings"
)

// Error taxonomy shared by every layer. Lower layers wrap these with
// fmt.Errorf("...: %w", err) and the transport maps them with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// FieldErrors reports invalid input per field, keyed by JSON field name.
// It satisfies errors.Is(err, ErrInvalidInput).
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error {
	return ErrInvalidInput
}
