package services

import (
	"math"
	"testing"

	"github.com/Valeamar/tidal2025/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var iowaFarm = models.FarmLocation{City: "Ames", State: "IA", ZipCode: "50010", Country: "US"}

func TestUnitPriceFactor(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
		ok       bool
	}{
		{"lb", "lb", 1, true},
		{"per lb", "Pounds", 1, true},
		{"lb", "kg", 1 / 0.45359237, true},
		{"ton", "lb", 0.45359237 / 907.18474, true},
		{"gal", "l", 1 / 3.785411784, true},
		{"each", "unit", 1, true},
		{"lb", "gal", 0, false},
		{"bag", "lb", 0, false},
		{"", "lb", 0, false},
	}
	for _, tt := range tests {
		got, ok := UnitPriceFactor(tt.from, tt.to)
		assert.Equal(t, tt.ok, ok, "%s -> %s", tt.from, tt.to)
		assert.InDelta(t, tt.want, got, 1e-12, "%s -> %s", tt.from, tt.to)
	}
}

func TestCategorizeProduct(t *testing.T) {
	assert.Equal(t, CategorySeeds, CategorizeProduct("Corn Seeds"))
	assert.Equal(t, CategoryFertilizer, CategorizeProduct("Nitrogen Fertilizer"))
	assert.Equal(t, CategoryPesticides, CategorizeProduct("Herbicide"))
	assert.Equal(t, CategoryFuel, CategorizeProduct("Diesel Fuel"))
	assert.Equal(t, CategoryOther, CategorizeProduct("Fence posts"))
}

func TestDistanceBandFor(t *testing.T) {
	band, ok := DistanceBandFor("IA", "ia")
	assert.True(t, ok)
	assert.Equal(t, BandLocal, band)

	band, _ = DistanceBandFor("IL", "IA")
	assert.Equal(t, BandRegional, band)

	band, _ = DistanceBandFor("CA", "IA")
	assert.Equal(t, BandNational, band)

	_, ok = DistanceBandFor("", "IA")
	assert.False(t, ok)
}

func TestSalesTaxRate(t *testing.T) {
	assert.Equal(t, 0.0, SalesTaxRate("IA"))
	assert.Equal(t, 0.0725, SalesTaxRate("ca"))
	assert.Equal(t, DefaultSalesTaxRate, SalesTaxRate("ZZ"))
}

func TestNormalize_EffectiveCostAddsUp(t *testing.T) {
	n := NewNormalizer("USD")
	product := models.ProductRequest{Name: "Nitrogen Fertilizer", Quantity: 1000, Unit: "lb"}
	quotes := []models.PriceQuote{
		{SupplierName: "A", Price: 0.80, Unit: "lb", Currency: "USD", SupplierState: "IA"},
		{SupplierName: "B", Price: 1600, Unit: "ton", SupplierState: "CA"},
	}

	out, limitations := n.Normalize(product, iowaFarm, quotes)
	require.Len(t, out, 2)
	assert.Empty(t, limitations)

	for _, q := range out {
		c := q.Cost
		assert.InDelta(t, c.Base+c.Logistics+c.Taxes+c.Wastage, c.Total, 1e-9)
	}

	local := out[0].Cost
	assert.InDelta(t, 0.80, local.Base, 1e-12)
	freight := 1.50 * 1.6
	assert.InDelta(t, freight*(1+FuelSurchargeRate)+HandlingFeePerUnit, local.Logistics, 1e-9)
	assert.InDelta(t, RegulatoryFeePerUnit+0.80*PaymentProcessingRate, local.Taxes, 1e-9)
	assert.InDelta(t, 0.80*0.01, local.Wastage, 1e-12)

	assert.InDelta(t, 1600/2000.0, out[1].UnitPrice, 1e-3)
	assert.Greater(t, out[1].Cost.Logistics, local.Logistics)
}

func TestNormalize_DropsUnusableQuotes(t *testing.T) {
	n := NewNormalizer("USD")
	product := models.ProductRequest{Name: "Corn Seeds", Quantity: 100, Unit: "unit"}
	quotes := []models.PriceQuote{
		{SupplierName: "A", Price: 150, Unit: "unit", SupplierState: "IA"},
		{SupplierName: "B", Price: 150, Unit: "gal", SupplierState: "IA"},
		{SupplierName: "C", Price: 150, Unit: "unit", Currency: "EUR", SupplierState: "IA"},
		{SupplierName: "D", Price: math.NaN(), Unit: "unit", SupplierState: "IA"},
		{SupplierName: "E", Price: 0, Unit: "unit", SupplierState: "IA"},
	}

	out, limitations := n.Normalize(product, iowaFarm, quotes)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].Quote.SupplierName)
	assert.Equal(t, []string{
		`dropped 1 quote(s): unit "gal" not convertible to "unit"`,
		"dropped 1 quote(s): currency EUR differs from USD",
		"dropped 2 quote(s): invalid price",
	}, limitations)
}

func TestNormalize_FallbackLogistics(t *testing.T) {
	n := NewNormalizer("USD")
	product := models.ProductRequest{Name: "Corn Seeds", Quantity: 100, Unit: "unit"}
	quotes := []models.PriceQuote{{SupplierName: "A", Price: 150, Unit: "unit"}}

	out, limitations := n.Normalize(product, models.FarmLocation{City: "Ames"}, quotes)
	require.Len(t, out, 1)
	assert.Equal(t, FallbackLogisticsPerUnit, out[0].Cost.Logistics)
	assert.Equal(t, []string{"logistics estimated at fallback rate 4.125 per unit: delivery state unknown"}, limitations)

	other := models.ProductRequest{Name: "Fence posts", Quantity: 10, Unit: "unit"}
	_, limitations = n.Normalize(other, iowaFarm, []models.PriceQuote{{SupplierName: "A", Price: 5, Unit: "unit", SupplierState: "IA"}})
	assert.Equal(t, []string{"logistics estimated at fallback rate 4.125 per unit: product weight class unknown"}, limitations)
}

func TestNormalize_ConvertsPriceBreaks(t *testing.T) {
	n := NewNormalizer("USD")
	product := models.ProductRequest{Name: "Nitrogen Fertilizer", Quantity: 10, Unit: "kg"}
	quotes := []models.PriceQuote{{
		SupplierName:  "A",
		Price:         1,
		Unit:          "lb",
		SupplierState: "IA",
		PriceBreaks:   []models.PriceBreak{{MinQuantity: 100, Price: 0.9}},
	}}

	out, _ := n.Normalize(product, iowaFarm, quotes)
	require.Len(t, out, 1)
	require.Len(t, out[0].PriceBreaks, 1)
	assert.InDelta(t, 45.359237, out[0].PriceBreaks[0].MinQuantity, 1e-6)
	assert.InDelta(t, 0.9/0.45359237, out[0].PriceBreaks[0].Price, 1e-9)
}

func TestNormalize_ConvertsMOQ(t *testing.T) {
	moq := 1
	out, _ := NewNormalizer("USD").Normalize(
		models.ProductRequest{Name: "Urea", Quantity: 500, Unit: "lb"},
		iowaFarm,
		[]models.PriceQuote{
			{SupplierName: "A", Price: 800, Unit: "ton", MOQ: &moq},
			{SupplierName: "B", Price: 0.5, Unit: "lb"},
		})
	require.Len(t, out, 2)
	require.NotNil(t, out[0].MOQ)
	assert.InDelta(t, 2000, *out[0].MOQ, 1e-6)
	assert.Nil(t, out[1].MOQ)

	top := TopSuppliers(RankSuppliers(out), 2)
	assert.Equal(t, "A", top[0].Name)
	require.NotNil(t, top[0].MOQ)
	assert.InDelta(t, 2000, *top[0].MOQ, 1e-6)
}

func TestNormalize_EmptyInput(t *testing.T) {
	out, limitations := NewNormalizer("").Normalize(models.ProductRequest{Name: "x", Unit: "lb"}, iowaFarm, nil)
	assert.Empty(t, out)
	assert.Empty(t, limitations)
}
