package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/scribe/internal/core/domain"
)

// WrapError maps a Google API error onto the domain error taxonomy so the
// pipeline can decide whether to retry. Non-API errors pass through.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, gerr.Message)
	case gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, gerr.Message)
	case gerr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, gerr.Message)
	case gerr.Code >= 500:
		return fmt.Errorf("%w: google returned %d", domain.ErrVendorUnavailable, gerr.Code)
	default:
		return err
	}
}
