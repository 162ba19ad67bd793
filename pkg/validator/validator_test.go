package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type form struct {
	Name   string `json:"clinic_name" validate:"required"`
	Status string `json:"license_status" validate:"required,license_status"`
	Method string `json:"method" validate:"omitempty,verification_method"`
	Phone  string `json:"phone" validate:"omitempty,jo_phone"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(form{Name: "x", Status: "active", Method: "qr_scan", Phone: "0791234567"}))
	assert.NoError(t, v.Validate(&form{Name: "x", Status: "pending"}))

	err := v.Validate(form{Status: "revoked", Method: "fax"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "clinic_name is required")
	assert.Contains(t, err.Error(), "license_status must be one of")
	assert.Contains(t, err.Error(), "method must be one of")
}

func TestValidateField(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateField("status", "expired", "license_status"))
	err := v.ValidateField("status", "gone", "license_status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status must be one of")
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		ok    bool
	}{
		{"", true},
		{"0791234567", true},
		{"+962791234567", true},
		{"  0791234567 ", true},
		{"12", false},
		{"not a phone", false},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)
			}
		})
	}
}

func TestRegisterGinIsRepeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterGin()
		RegisterGin()
	})
}
