package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/validation"
	"github.com/xenking/marketplace/internal/domain/wishlist"
)

const maxBodyBytes = 1 << 20

var (
	errForbidden   = errors.New("forbidden")
	errInvalidBody = errors.New("invalid request body")
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes. Unclassified errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func classify(err error) (int, string) {
	var (
		vErr  *validation.Error
		puErr *order.ProductUnavailableError
		tmErr *order.TotalMismatchError
		trErr *order.TransitionError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid or missing token"
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, account.ErrInvalidCredentials.Error()

	case errors.Is(err, errForbidden):
		return http.StatusForbidden, errForbidden.Error()
	case errors.Is(err, account.ErrVendorNotApproved):
		return http.StatusForbidden, account.ErrVendorNotApproved.Error()
	case errors.Is(err, account.ErrAdminRegistration):
		return http.StatusForbidden, account.ErrAdminRegistration.Error()

	case errors.As(err, &puErr):
		return http.StatusNotFound, puErr.Error()
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, wishlist.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, rootMessage(err)

	case errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, order.ErrCheckoutInProgress),
		errors.Is(err, order.ErrCartChanged):
		return http.StatusConflict, rootMessage(err)

	case errors.As(err, &tmErr):
		return http.StatusUnprocessableEntity, tmErr.Error()
	case errors.As(err, &trErr):
		return http.StatusUnprocessableEntity, trErr.Error()
	case errors.Is(err, product.ErrSellingAboveMRP),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrTotalTooLarge),
		errors.Is(err, account.ErrNotVendor):
		return http.StatusUnprocessableEntity, rootMessage(err)

	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// rootMessage strips wrapping context so clients see the sentinel text only.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// decodeJSON reads a JSON body into v. Any decoding failure is reported as
// errInvalidBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errInvalidBody, err.Error())
	}
	return nil
}
