package validation

import (
	"regexp"

	validatorv10 "github.com/go-playground/validator/v10"
)

// catalog ids are slugs or uuids
var itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// New returns a configured validator with the custom tags used by request types registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// itemid rejects ids that could never exist in the catalog before any lookup happens.
	_ = v.RegisterValidation("itemid", func(fl validatorv10.FieldLevel) bool {
		return itemIDPattern.MatchString(fl.Field().String())
	})

	return v
}
