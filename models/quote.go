package models

import "time"

// PriceQuote is a raw supplier quote as returned by a market data provider.
// Quotes are never mutated; normalization derives new values from them.
type PriceQuote struct {
	SupplierName  string
	Price         float64
	Unit          string
	Currency      string
	MOQ           *int
	LeadTimeDays  *int
	Reliability   *float64
	ObservedAt    time.Time
	SupplierState string
	ContactInfo   string
	PriceBreaks   []PriceBreak
}

// PriceBreak is a volume tier: orders of at least MinQuantity pay Price per unit.
type PriceBreak struct {
	MinQuantity float64
	Price       float64
}

// EffectiveCost is the per-unit delivered cost derived from one quote.
type EffectiveCost struct {
	Base      float64
	Logistics float64
	Taxes     float64
	Wastage   float64
	Total     float64
}

// NewEffectiveCost builds an EffectiveCost whose Total is the sum of its parts.
func NewEffectiveCost(base, logistics, taxes, wastage float64) EffectiveCost {
	return EffectiveCost{
		Base:      base,
		Logistics: logistics,
		Taxes:     taxes,
		Wastage:   wastage,
		Total:     base + logistics + taxes + wastage,
	}
}

// PriceBand is the percentile distribution of effective costs for a product.
type PriceBand struct {
	P10 float64
	P25 float64
	P35 float64
	P50 float64
	P90 float64
}

// Target is the budgeting price, always the P35 tier.
func (b PriceBand) Target() float64 {
	return b.P35
}

// Monotone reports whether P10 <= P25 <= P35 <= P50 <= P90.
func (b PriceBand) Monotone() bool {
	return b.P10 <= b.P25 && b.P25 <= b.P35 && b.P35 <= b.P50 && b.P50 <= b.P90
}

// Supplier is a ranked entry of a product's supplier list. Prices and MOQ
// are in the product unit.
type Supplier struct {
	Name           string
	BasePrice      float64
	EffectivePrice float64
	LeadTimeDays   *int
	Reliability    *float64
	MOQ            *float64
	ContactInfo    string
	State          string
}
