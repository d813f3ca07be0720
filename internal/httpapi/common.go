package httpapi

import (
	"time"

	"github.com/go-playground/validator/v10"

	"tminus/internal/apperrors"
	"tminus/internal/store"
)

// validate runs struct-tag validation on decoded request bodies with its
// own validator.New() instance, built the same way as the one
// internal/constraintengine uses for variant config structs, so a
// malformed "required" field is rejected before it ever reaches an actor
// method.
var validate = validator.New()

// decodeAndValidate decodes body into dst, then runs struct-tag validation.
// Handlers with no meaningful required-field shape keep calling decodeBody
// directly; this is for the request DTOs with fields an actor method can't
// proceed without.
func decodeAndValidate(body []byte, dst interface{}) error {
	if err := decodeBody(body, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError extracts the first failing field so the apperrors.Validation
// message names the offending field directly, mirroring constraintengine's
// own validationError.
func validationError(err error) error {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.Validation(fe.Field(), "failed "+fe.Tag())
	}
	return apperrors.Validation("body", err.Error())
}

// listFilterRequest is the wire shape for every operation that filters
// canonical events by account/window/page, translated into a store.ListFilter.
type listFilterRequest struct {
	AccountIDs []string   `json:"account_ids"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

func (r listFilterRequest) toFilter() store.ListFilter {
	return store.ListFilter{
		AccountIDs: r.AccountIDs,
		From:       r.From,
		To:         r.To,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// windowRequest is the wire shape for operations parameterized by a plain
// [start, end) time window over one or more accounts.
type windowRequest struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	AccountIDs []string  `json:"account_ids"`
}
