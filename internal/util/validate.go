package util

import (
	"sync"

	"github.com/go-playground/validator"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStruct checks the `validate` tags of v.
func ValidateStruct(v any) error {
	return Validator().Struct(v)
}
