// Package validate 基于 go-playground/validator 的单例校验器。
// 字段名取 json tag，错误信息逐字段翻译后放入 apperr 的 Details。
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
)

var (
	v    *validator.Validate
	once sync.Once

	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	PasswordMinLen = 8
	NameMinLen     = 2
	NameMaxLen     = 50
)

func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("shelf_email", func(fl validator.FieldLevel) bool { return Email(fl.Field().String()) })
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool { return len(Password(fl.Field().String())) == 0 })
		_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool { return Name(fl.Field().String()) })
		_ = v.RegisterValidation("costrange", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			_, ok := domain.CostRangeLabels[s]
			return s == "" || ok
		})
		_ = v.RegisterValidation("availability", func(fl validator.FieldLevel) bool {
			_, ok := domain.AvailabilityColumns[fl.Field().String()]
			return ok
		})
	})
	return v
}

// Struct 校验通过返回 nil，否则返回带逐字段信息的 VALIDATION_ERROR
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return apperr.Validation(err.Error())
	}
	details := make([]string, 0, len(fes))
	for _, fe := range fes {
		details = append(details, translate(fe))
	}
	return apperr.Validation("Validation failed", details...)
}

func Email(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) <= 254 && emailRe.MatchString(s)
}

// Password 返回不满足的规则；空切片表示通过
func Password(s string) []string {
	var problems []string
	if len(s) < PasswordMinLen {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", PasswordMinLen))
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter {
		problems = append(problems, "password must contain at least one letter")
	}
	if !digit {
		problems = append(problems, "password must contain at least one number")
	}
	return problems
}

func Name(s string) bool {
	n := len([]rune(strings.TrimSpace(s)))
	return n >= NameMinLen && n <= NameMaxLen
}

var simpleMessages = map[string]string{
	"required":     "%s is required",
	"email":        "%s must be a valid email address",
	"shelf_email":  "%s must be a valid email address",
	"password":     "%s must be at least 8 characters and contain a letter and a number",
	"personname":   "%s must be between 2 and 50 characters",
	"costrange":    "%s must be one of $, $$, $$$, $$$$",
	"availability": "%s must be one of inPrint, digital, usedMarket, supplements",
	"url":          "%s must be a valid URL",
	"uuid":         "%s must be a valid id",
}

var paramMessages = map[string]string{
	"oneof":    "%s must be one of: %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gtefield": "%s must be greater than or equal to %s",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tpl, ok := simpleMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, field)
	}
	if tpl, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tpl, field, fe.Param())
	}
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
