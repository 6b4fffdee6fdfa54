package shared

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	statePattern = regexp.MustCompile(`^[0-9]{2}$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
			return ValidGSTIN(fl.Field().String())
		})
		_ = validate.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
			return panPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("statecode", func(fl validator.FieldLevel) bool {
			return ValidStateCode(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct runs struct tag validation and folds failures into a
// single ErrValidation error naming the first offending field.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "invalid_" + strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			reason = "missing_" + strings.ToLower(fe.Field())
		}
		return Validation(reason, "%s failed %q", fe.Namespace(), fe.Tag())
	}
	return Validation("invalid_input", "%s", err.Error())
}

// ValidGSTIN checks the 15 character GSTIN layout and its state prefix.
func ValidGSTIN(gstin string) bool {
	return gstinPattern.MatchString(gstin) && ValidStateCode(gstin[:2])
}

// ValidStateCode accepts the two digit GST state codes 01-38 and 97 (other territory).
func ValidStateCode(code string) bool {
	if !statePattern.MatchString(code) {
		return false
	}
	n := int(code[0]-'0')*10 + int(code[1]-'0')
	return (n >= 1 && n <= 38) || n == 97
}

// StateFromGSTIN returns the state code prefix of a GSTIN, or "".
func StateFromGSTIN(gstin string) string {
	if len(gstin) < 2 {
		return ""
	}
	return gstin[:2]
}
