package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	stepIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// validatorInstance configures and returns the shared validator used
// across the config package, built once and extended with the step_id
// tag.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("step_id", func(fl validator.FieldLevel) bool {
			return stepIDPattern.MatchString(fl.Field().String())
		})
		validateInst = v
	})
	return validateInst
}

// GetValidator returns the shared validator instance for use outside the
// config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}
