package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

func CreateError(statusCode int, title, detail string, ctx iris.Context) {
	ctx.StopWithProblem(statusCode, iris.NewProblem().
		Title(title).
		Detail(detail))
}

func CreateInternalServerError(ctx iris.Context) {
	CreateError(iris.StatusInternalServerError, "Internal Server Error", "Internal Server Error", ctx)
}

func CreateNotFound(ctx iris.Context) {
	CreateError(iris.StatusNotFound, "Not Found", "Not Found", ctx)
}

// HandleValidationErrors reports validator failures field by field and
// anything else (bad JSON, oversized body) as a bad request.
func HandleValidationErrors(err error, ctx iris.Context) {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		ctx.StopWithProblem(iris.StatusBadRequest, iris.NewProblem().
			Title("Validation error").
			Detail("One or more fields failed to be validated").
			Key("errors", wrapValidationErrors(errs)))
		return
	}

	CreateError(iris.StatusBadRequest, "Bad Request", err.Error(), ctx)
}

type validationError struct {
	ActualTag string `json:"tag"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Param     string `json:"param"`
}

func wrapValidationErrors(errs validator.ValidationErrors) []validationError {
	validationErrors := make([]validationError, 0, len(errs))
	for _, validationErr := range errs {
		validationErrors = append(validationErrors, validationError{
			ActualTag: validationErr.ActualTag(),
			Namespace: validationErr.Namespace(),
			Kind:      validationErr.Kind().String(),
			Type:      validationErr.Type().String(),
			Value:     toString(validationErr.Value()),
			Param:     validationErr.Param(),
		})
	}
	return validationErrors
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
