package cli

import (
	"errors"
	"fmt"

	"emart_admin/internal/api"
	"emart_admin/internal/auth"
	"emart_admin/internal/cart"
	"emart_admin/internal/catalog"
	"emart_admin/internal/ledger"
	"emart_admin/internal/llm"
)

// friendlyError turns a command failure into the line shown to the operator.
func friendlyError(err error) string {
	var (
		partial    *cart.PartialCheckoutError
		validation *cart.ValidationError
		apiErr     *api.APIError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &partial):
		return fmt.Sprintf("Order %s was created but its items were not attached. Type 'retry' to attach them again.", partial.OrderID)
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "Not logged in or the session expired. Run 'login' or set email and password."
	case errors.Is(err, api.ErrLoginFailed):
		return "Login failed: check email and password."
	case errors.Is(err, api.ErrUnauthorized):
		return "Access denied: the session token was rejected. Run 'login' again."
	case errors.Is(err, api.ErrRateLimited):
		return "Too many requests. Try again in a moment."
	case errors.Is(err, api.ErrMalformedPayload):
		return "The server sent data that could not be read; nothing was changed locally."
	case errors.As(err, &validation):
		return validation.Error()
	case errors.Is(err, ledger.ErrNothingPayable):
		return "Nothing is payable for this vendor."
	case errors.Is(err, ledger.ErrMissingTransaction):
		return "A transaction id is required to record a payment."
	case errors.Is(err, ledger.ErrMissingVendor), errors.Is(err, catalog.ErrMissingVendor):
		return "A vendor id is required."
	case errors.Is(err, catalog.ErrVendorPriceRequired):
		return "Margin products need a vendor price."
	case errors.Is(err, llm.ErrNotConfigured):
		return "The assistant is not configured: set llm_api_key and llm_model."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Server error: %s", apiErr.Status)
	default:
		return err.Error()
	}
}
