package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fairlend/peerscope/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidYearRange = errors.New("year range is not well formed")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateYearRange ensures a year range is well formed.
func validateYearRange(years model.YearRange) error {
	if !years.Valid() {
		return fmt.Errorf("%w: from=%d to=%d", ErrInvalidYearRange, years.From, years.To)
	}
	return nil
}
