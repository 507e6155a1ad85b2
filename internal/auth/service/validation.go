package service

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
)

var handleRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*[a-z0-9]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return len(value) >= constants.HandleMinLength &&
			len(value) <= constants.HandleMaxLength &&
			handleRegex.MatchString(value)
	})
	// bcrypt only reads the first 72 bytes, so the bound is in bytes.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return len(value) >= constants.PasswordMinLength && len(value) <= constants.PasswordMaxLength
	})
	return v
}

type registerRules struct {
	Handle   string `validate:"required,handle"`
	Email    string `validate:"required,email,max=254"`
	FullName string `validate:"required,max=100"`
	Password string `validate:"required,password"`
}

type accountRules struct {
	Email    string `validate:"required,email,max=254"`
	FullName string `validate:"required,max=100"`
}

type passwordRules struct {
	Password string `validate:"required,password"`
}

var fieldMessages = map[string]string{
	"Handle":   fmt.Sprintf("handle must be %d-%d characters of a-z, 0-9, '_', '.' or '-'", constants.HandleMinLength, constants.HandleMaxLength),
	"Email":    "email must be a valid address",
	"FullName": fmt.Sprintf("full name is required and at most %d characters", constants.FullNameMaxLength),
	"Password": fmt.Sprintf("password must be %d-%d bytes", constants.PasswordMinLength, constants.PasswordMaxLength),
}

// validateStruct runs the rules on s and reports the first failing field as
// a VALIDATION_FAILED error carrying a readable message.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return ErrValidation.WithCause(err)
	}

	fe := fieldErrs[0]
	message, ok := fieldMessages[fe.Field()]
	if !ok {
		message = fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
	return validationError(message).WithCause(err)
}

func validationError(message string) commonerrors.DomainError {
	return commonerrors.NewDomainError(
		ErrValidation.Code(),
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		message,
	)
}

func normalizeLogin(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
