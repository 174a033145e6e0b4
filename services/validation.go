package services

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Valeamar/tidal2025/models"
)

const (
	MaxProductNameLength    = 200
	MaxUnitLength           = 50
	MaxSpecificationsLength = 500
)

// ValidateProduct checks one product line. A failure only rejects that line.
func ValidateProduct(p models.ProductRequest) error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case utf8.RuneCountInString(name) > MaxProductNameLength:
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxProductNameLength)}
	case math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) || p.Quantity <= 0:
		return &ValidationError{Field: "quantity", Message: "must be a positive number"}
	case strings.TrimSpace(p.Unit) == "":
		return &ValidationError{Field: "unit", Message: "is required"}
	case utf8.RuneCountInString(p.Unit) > MaxUnitLength:
		return &ValidationError{Field: "unit", Message: fmt.Sprintf("must be at most %d characters", MaxUnitLength)}
	case utf8.RuneCountInString(p.Specifications) > MaxSpecificationsLength:
		return &ValidationError{Field: "specifications", Message: fmt.Sprintf("must be at most %d characters", MaxSpecificationsLength)}
	case p.MaxPrice != nil && (math.IsNaN(*p.MaxPrice) || *p.MaxPrice <= 0):
		return &ValidationError{Field: "max_price", Message: "must be positive when set"}
	}
	return nil
}

// ValidateRequest rejects requests that cannot be analyzed at all.
func ValidateRequest(products []models.ProductRequest, maxProducts int) error {
	if len(products) == 0 {
		return ErrEmptyProductList
	}
	if maxProducts > 0 && len(products) > maxProducts {
		return &ValidationError{Field: "products", Message: fmt.Sprintf("at most %d products per request, got %d", maxProducts, len(products))}
	}
	return nil
}
