package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// mustRegisterValidation registers a custom tag at construction time. A
// failure means the tag or function is malformed, so it panics.
func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validator: %v", tag, err))
	}
}
