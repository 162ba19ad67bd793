package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"

	"github.com/jwalitptl/dental-verify/internal/model"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// PhoneRegion is the default region for numbers written without a country
// code.
const PhoneRegion = "JO"

// Validator checks structs and single values against validate tags.
type Validator interface {
	Validate(obj interface{}) error
	ValidateField(field string, value interface{}, rules string) error
}

type structValidator struct {
	v *validator.Validate
}

// New returns a Validator that knows the domain rules.
func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		panic(err)
	}
	return &structValidator{v: v}
}

func (s *structValidator) Validate(obj interface{}) error {
	return translate(s.v.Struct(obj))
}

func (s *structValidator) ValidateField(field string, value interface{}, rules string) error {
	if err := s.v.Var(value, rules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.NewBadRequest(fmt.Sprintf("%s %s", field, describe(verrs[0])), err)
		}
		return apperrors.NewBadRequest(field+" is invalid", err)
	}
	return nil
}

// Register installs the license_status, verification_method and jo_phone
// rules and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	rules := map[string]validator.Func{
		"license_status": func(fl validator.FieldLevel) bool {
			return model.LicenseStatus(fl.Field().String()).Valid()
		},
		"verification_method": func(fl validator.FieldLevel) bool {
			return model.VerificationMethod(fl.Field().String()).Valid()
		},
		"jo_phone": func(fl validator.FieldLevel) bool {
			return ValidatePhone(fl.Field().String()) == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

var ginOnce sync.Once

// RegisterGin installs the rules on gin's binding engine. Safe to call more
// than once.
func RegisterGin() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := Register(v); err != nil {
				panic(err)
			}
		}
	})
}

// ValidatePhone accepts local and international Jordanian numbers. An empty
// string is valid; phone is optional.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	p, err := libphonenumber.Parse(phone, PhoneRegion)
	if err != nil {
		return apperrors.NewBadRequest("invalid phone number", err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return apperrors.NewBadRequest("invalid phone number", nil)
	}
	return nil
}

// FieldError is one failed rule, keyed by json field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Fields flattens validator errors; other errors yield nil.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: e.Field(), Message: describe(e)})
	}
	return out
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if len(fields) == 0 {
		return apperrors.NewBadRequest("invalid request", err)
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + " " + f.Message
	}
	return apperrors.NewBadRequest(strings.Join(parts, "; "), err)
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "license_status":
		return "must be one of active, expired, suspended, pending"
	case "verification_method":
		return "must be one of qr_scan, manual_entry, image_upload"
	case "jo_phone":
		return "is not a valid phone number"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "email":
		return "must be a valid email"
	}
	return "failed " + e.Tag()
}
