package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/profepulse/profepulse-api/internal/models"
)

// NewValidator returns a validator with the domain specific tags registered.
//
//	period: the value is one of models.Periods
func NewValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "period", func(fl validator.FieldLevel) bool {
		return models.Period(fl.Field().String()).Valid()
	})
	return v
}

// mustRegister panics when tag cannot be registered.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}
