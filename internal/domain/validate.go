package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs the struct tag rules on v and reports failures as an
// INVALID_CONFIGURATION EngineError listing every offending field.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewInvalidConfigurationError("invalid configuration").Wrap(err)
	}

	fields := make([]string, 0, len(fieldErrs))
	engineErr := NewInvalidConfigurationError("invalid configuration")
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
		engineErr.WithDetail(fe.Field(), fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()))
	}
	engineErr.Message = fmt.Sprintf("invalid configuration: %s", strings.Join(fields, ", "))
	return engineErr
}

// DateOnly truncates t to midnight UTC of its own calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
