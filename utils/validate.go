package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validator returns the shared validator installed on the iris app.
func Validator() *validator.Validate {
	return validate
}

// Validate checks a struct read outside ctx.ReadJSON, e.g. a multipart part.
func Validate(v interface{}) error {
	return validate.Struct(v)
}
