package validation

import (
	"fmt"
	"regexp"

	validatorv10 "github.com/go-playground/validator/v10"
)

// profile ids are opaque but end up in storage keys and processor metadata
var profileIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// New returns a validator with the custom tags used by request types registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	mustRegister(v, "profile_id", validateProfileID)
	return v
}

// mustRegister panics on a bad tag; that is a programming error, not input.
func mustRegister(v *validatorv10.Validate, tag string, fn validatorv10.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func validateProfileID(fl validatorv10.FieldLevel) bool {
	return profileIDPattern.MatchString(fl.Field().String())
}
