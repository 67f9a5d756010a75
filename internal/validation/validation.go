// Package validation holds the form rules shared by sign-up, profile and recipe input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"cookbook/internal/imageproc"
)

// MaxImageBytes ограничивает аватар и картинку рецепта.
const MaxImageBytes = 1 << 20

// Errors maps a form field to a human readable message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add keeps the first message per field.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Err returns nil when there are no messages.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// AsErrors extracts field messages from err, if it carries any.
func AsErrors(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	if err := Register(v); err != nil {
		panic(err) // теги статичны, ошибка возможна только при опечатке в коде
	}
	return &Validator{v: v}
}

// Register adds the custom tags to v; the same call is used for gin's binding engine.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("capfirst", func(fl validator.FieldLevel) bool {
		return CapitalizedFirst(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return PasswordComplex(fl.Field().String())
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Struct validates s and converts failures to Errors.
func (vl *Validator) Struct(s any) error {
	err := vl.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := Errors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eqfield":
		return "does not match"
	case "capfirst":
		return "must start with an uppercase letter"
	case "password":
		return "must contain at least one letter and one digit"
	}
	return "is invalid"
}

// CapitalizedFirst: первая руна должна быть заглавной буквой (любой алфавит).
func CapitalizedFirst(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return false
	}
	return unicode.IsUpper(r)
}

// PasswordComplex: at least 8 characters with one letter and one digit.
func PasswordComplex(pw string) bool {
	if utf8.RuneCountInString(pw) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// PasswordDistinct rejects passwords equal to the user's own identifiers.
func PasswordDistinct(pw string, identifiers ...string) bool {
	for _, id := range identifiers {
		if id != "" && strings.EqualFold(pw, id) {
			return false
		}
	}
	return true
}

// NormalizeEmail trims and lower-cases the domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// Image checks size and that data decodes as JPEG, PNG or GIF. Returns the format.
func Image(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("is empty")
	}
	if len(data) > MaxImageBytes {
		return "", errors.New("must be at most 1 MiB")
	}
	format, err := imageproc.Detect(data)
	if err != nil {
		return "", errors.New("must be a JPEG, PNG or GIF image")
	}
	return format, nil
}
