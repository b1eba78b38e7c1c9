package domain

import (
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that understands the record tags used in
// this package, including the "relationship" and "unit" enum checks.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("relationship", func(fl validator.FieldLevel) bool {
		return Relationship(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		return Unit(fl.Field().String()).Valid()
	})
	return v
}
