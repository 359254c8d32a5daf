package utils

import (
	"unicode"

	"taskquest/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func RegisterCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("password", ValidatePasswordRule)
	_ = v.RegisterValidation("priority", validatePriorityRule)
	_ = v.RegisterValidation("recurrence", validateRecurrenceRule)
}

// InitValidator installs the custom rules on gin's binding engine.
func InitValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterCustomValidators(v)
	}
}

func ValidatePasswordRule(fl validator.FieldLevel) bool {
	return ValidatePassword(fl.Field().String())
}

// ValidatePassword requires at least 6 characters with one number and one
// special character.
func ValidatePassword(password string) bool {
	hasNumber := false
	hasSpecial := false

	if len(password) < 6 {
		return false
	}

	for _, char := range password {
		switch {
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasNumber && hasSpecial
}

// Empty values pass; use "required" alongside when the field is mandatory.
func validatePriorityRule(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, ok := model.ParsePriority(s)
	return ok
}

func validateRecurrenceRule(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || model.RecurrenceType(s).Valid()
}
