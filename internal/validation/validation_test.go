package validation_test

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/validation"
)

type line struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type payload struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Lines []line `json:"lines" validate:"dive"`
}

func TestMessages(t *testing.T) {
	v := validation.New()

	err := v.Struct(payload{Name: "J", Email: "not-an-email", Lines: []line{{Quantity: 1}, {Quantity: 0}}})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := validation.Messages(verrs)
	assert.Equal(t, map[string]string{
		"name":              "Field 'name' must be at least 2 characters long",
		"email":             "Field 'email' must be a valid email address",
		"lines[1].quantity": "Field 'lines[1].quantity' must be greater than 0",
	}, got)
}

func TestDetails_Sorted(t *testing.T) {
	details := validation.Details(map[string]string{
		"b": "Field 'b' is required",
		"a": "Field 'a' is required",
	})

	assert.Equal(t, []string{"Field 'a' is required", "Field 'b' is required"}, details)
}
