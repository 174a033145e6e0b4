package services

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
)

func TestValidateProduct(t *testing.T) {
	negative := -1.0
	tests := []struct {
		name    string
		product models.ProductRequest
		field   string
	}{
		{"valid", models.ProductRequest{Name: "Urea", Quantity: 1, Unit: "lb"}, ""},
		{"missing name", models.ProductRequest{Name: "  ", Quantity: 1, Unit: "lb"}, "name"},
		{"long name", models.ProductRequest{Name: strings.Repeat("x", 201), Quantity: 1, Unit: "lb"}, "name"},
		{"zero quantity", models.ProductRequest{Name: "Urea", Quantity: 0, Unit: "lb"}, "quantity"},
		{"nan quantity", models.ProductRequest{Name: "Urea", Quantity: math.NaN(), Unit: "lb"}, "quantity"},
		{"missing unit", models.ProductRequest{Name: "Urea", Quantity: 1}, "unit"},
		{"long specifications", models.ProductRequest{Name: "Urea", Quantity: 1, Unit: "lb", Specifications: strings.Repeat("s", 501)}, "specifications"},
		{"negative max price", models.ProductRequest{Name: "Urea", Quantity: 1, Unit: "lb", MaxPrice: &negative}, "max_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			if assert.True(t, errors.As(err, &verr)) {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(nil, 50), ErrEmptyProductList)

	products := make([]models.ProductRequest, 51)
	var verr *ValidationError
	assert.True(t, errors.As(ValidateRequest(products, 50), &verr))

	assert.NoError(t, ValidateRequest(products[:1], 50))
}
