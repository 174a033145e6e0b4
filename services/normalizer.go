package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Valeamar/tidal2025/models"
)

// ============================================================================
// PRODUCT CATEGORIES
// ============================================================================

type ProductCategory string

const (
	CategorySeeds      ProductCategory = "seeds"
	CategoryFertilizer ProductCategory = "fertilizer"
	CategoryPesticides ProductCategory = "pesticides"
	CategoryEquipment  ProductCategory = "equipment"
	CategoryFuel       ProductCategory = "fuel"
	CategoryOther      ProductCategory = "other"
)

var categoryKeywords = []struct {
	category ProductCategory
	words    []string
}{
	{CategorySeeds, []string{"seed", "corn", "soybean", "wheat", "barley"}},
	{CategoryFertilizer, []string{"fertilizer", "nitrogen", "phosphorus", "potash", "urea"}},
	{CategoryPesticides, []string{"pesticide", "herbicide", "insecticide", "fungicide"}},
	{CategoryEquipment, []string{"tractor", "plow", "harvester", "equipment"}},
	{CategoryFuel, []string{"fuel", "diesel", "gasoline", "propane"}},
}

// CategorizeProduct maps a product name to its category by keyword.
func CategorizeProduct(name string) ProductCategory {
	lower := strings.ToLower(name)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				return c.category
			}
		}
	}
	return CategoryOther
}

var wastageFactors = map[ProductCategory]float64{
	CategorySeeds:      0.02,
	CategoryFertilizer: 0.01,
	CategoryPesticides: 0.005,
	CategoryEquipment:  0.0,
	CategoryFuel:       0.01,
	CategoryOther:      0.01,
}

type WeightClass string

const (
	WeightUnknown WeightClass = ""
	WeightLight   WeightClass = "light"
	WeightMedium  WeightClass = "medium"
	WeightHeavy   WeightClass = "heavy"
)

var categoryWeight = map[ProductCategory]WeightClass{
	CategorySeeds:      WeightMedium,
	CategoryFertilizer: WeightHeavy,
	CategoryPesticides: WeightLight,
	CategoryEquipment:  WeightHeavy,
	CategoryFuel:       WeightHeavy,
}

var weightMultipliers = map[WeightClass]float64{
	WeightLight:  0.5,
	WeightMedium: 1.0,
	WeightHeavy:  1.6,
}

// ============================================================================
// UNITS
// ============================================================================

type unitFamily int

const (
	familyMass unitFamily = iota + 1
	familyVolume
	familyCount
)

type unitDef struct {
	family unitFamily
	toBase float64
}

// Base units: kg, l, unit.
var unitTable = map[string]unitDef{
	"kg":    {familyMass, 1},
	"g":     {familyMass, 0.001},
	"lb":    {familyMass, 0.45359237},
	"oz":    {familyMass, 0.028349523125},
	"cwt":   {familyMass, 45.359237},
	"ton":   {familyMass, 907.18474},
	"tonne": {familyMass, 1000},
	"l":     {familyVolume, 1},
	"ml":    {familyVolume, 0.001},
	"gal":   {familyVolume, 3.785411784},
	"qt":    {familyVolume, 0.946352946},
	"unit":  {familyCount, 1},
}

var unitAliases = map[string]string{
	"kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilograms": "kg",
	"gram": "g", "grams": "g", "gr": "g",
	"lbs": "lb", "pound": "lb", "pounds": "lb",
	"ounce": "oz", "ounces": "oz",
	"tons": "ton", "short ton": "ton",
	"t": "tonne", "mt": "tonne", "tonnes": "tonne", "metric ton": "tonne",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l", "ltr": "l",
	"milliliter": "ml", "milliliters": "ml",
	"gallon": "gal", "gallons": "gal", "gals": "gal",
	"quart": "qt", "quarts": "qt",
	"units": "unit", "each": "unit", "ea": "unit", "piece": "unit", "pieces": "unit", "pc": "unit", "pcs": "unit",
	"bags": "bag", "bushels": "bushel", "bu": "bushel", "acres": "acre",
}

// CanonicalUnit lower-cases a unit string and resolves aliases such as
// "per lb" or "Pounds".
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimPrefix(u, "per ")
	u = strings.TrimPrefix(u, "/")
	u = strings.TrimSuffix(u, ".")
	u = strings.TrimSpace(u)
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

// UnitPriceFactor returns the multiplier that turns a price per quoteUnit
// into a price per productUnit.
func UnitPriceFactor(quoteUnit, productUnit string) (float64, bool) {
	from, to := CanonicalUnit(quoteUnit), CanonicalUnit(productUnit)
	if from == "" || to == "" {
		return 0, false
	}
	if from == to {
		return 1, true
	}
	fd, okFrom := unitTable[from]
	td, okTo := unitTable[to]
	if !okFrom || !okTo || fd.family != td.family {
		return 0, false
	}
	return td.toBase / fd.toBase, true
}

// ============================================================================
// LOGISTICS & TAXES
// ============================================================================

type DistanceBand string

const (
	BandLocal    DistanceBand = "local"
	BandRegional DistanceBand = "regional"
	BandNational DistanceBand = "national"
)

const (
	FuelSurchargeRate        = 0.15
	HandlingFeePerUnit       = 1.25
	RemoteStatePremium       = 2.00
	FallbackLogisticsPerUnit = 4.125

	DefaultSalesTaxRate   = 0.06
	RegulatoryFeePerUnit  = 0.50
	OrganicCertFeePerUnit = 0.25
	PaymentProcessingRate = 0.029
)

var freightPerUnit = map[DistanceBand]float64{
	BandLocal:    1.50,
	BandRegional: 2.50,
	BandNational: 4.00,
}

var remoteStates = map[string]bool{"AK": true, "HI": true, "MT": true, "WY": true, "ND": true, "SD": true}

var stateRegions = map[string]string{}

func init() {
	regions := map[string][]string{
		"midwest":   {"IA", "IL", "IN", "MI", "MN", "MO", "OH", "WI"},
		"plains":    {"KS", "NE", "ND", "SD", "OK", "TX"},
		"southeast": {"AL", "AR", "FL", "GA", "KY", "LA", "MS", "NC", "SC", "TN", "VA", "WV"},
		"northeast": {"CT", "DE", "MA", "MD", "ME", "NH", "NJ", "NY", "PA", "RI", "VT"},
		"mountain":  {"AZ", "CO", "ID", "MT", "NM", "NV", "UT", "WY"},
		"pacific":   {"AK", "CA", "HI", "OR", "WA"},
	}
	for region, states := range regions {
		for _, s := range states {
			stateRegions[s] = region
		}
	}
}

var stateTaxRates = map[string]float64{
	"CA": 0.0725, "TX": 0.0625, "FL": 0.06, "NY": 0.08,
	"IL": 0.0625, "PA": 0.06, "OH": 0.0575, "GA": 0.04,
	"NC": 0.0475, "MI": 0.06, "NJ": 0.06625, "VA": 0.053,
	"WA": 0.065, "AZ": 0.056, "MA": 0.0625, "TN": 0.07,
	"IN": 0.07, "MO": 0.0423, "MD": 0.06, "WI": 0.05,
}

// agExemptStates waive sales tax on agricultural inputs.
var agExemptStates = map[string]bool{"IA": true, "IL": true, "IN": true, "NE": true, "KS": true, "MN": true, "WI": true}

// SalesTaxRate returns the effective sales tax on farm inputs for a state.
func SalesTaxRate(state string) float64 {
	state = strings.ToUpper(strings.TrimSpace(state))
	if agExemptStates[state] {
		return 0
	}
	if rate, ok := stateTaxRates[state]; ok {
		return rate
	}
	return DefaultSalesTaxRate
}

// DistanceBandFor classifies the route between a supplier and a farm.
func DistanceBandFor(supplierState, farmState string) (DistanceBand, bool) {
	from := strings.ToUpper(strings.TrimSpace(supplierState))
	to := strings.ToUpper(strings.TrimSpace(farmState))
	if from == "" || to == "" {
		return "", false
	}
	if from == to {
		return BandLocal, true
	}
	fr, okFrom := stateRegions[from]
	tr, okTo := stateRegions[to]
	if okFrom && okTo && fr == tr {
		return BandRegional, true
	}
	return BandNational, true
}

// ============================================================================
// NORMALIZER
// ============================================================================

// NormalizedQuote is a quote restated per product unit with its delivered
// cost. MOQ and PriceBreaks quantities are in the product unit as well.
type NormalizedQuote struct {
	Quote       models.PriceQuote
	UnitPrice   float64
	MOQ         *float64
	PriceBreaks []models.PriceBreak
	Cost        models.EffectiveCost
}

// Normalizer converts raw quotes to effective delivered costs in the
// product's unit and the canonical currency.
type Normalizer struct {
	currency string
}

func NewNormalizer(currency string) *Normalizer {
	if currency == "" {
		currency = "USD"
	}
	return &Normalizer{currency: strings.ToUpper(currency)}
}

// Normalize returns one NormalizedQuote per usable quote, in input order,
// plus the data limitations found along the way. It never fails.
func (n *Normalizer) Normalize(product models.ProductRequest, location models.FarmLocation, quotes []models.PriceQuote) ([]NormalizedQuote, []string) {
	category := CategorizeProduct(product.Name)
	weight := categoryWeight[category]
	organic := isOrganic(product)

	var out []NormalizedQuote
	var limitations []string
	var invalidPrices int
	var fallbackUsed bool
	droppedUnits := map[string]int{}
	droppedCurrency := map[string]int{}

	for _, q := range quotes {
		if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
			invalidPrices++
			continue
		}
		currency := strings.ToUpper(strings.TrimSpace(q.Currency))
		if currency != "" && currency != n.currency {
			droppedCurrency[currency]++
			continue
		}
		factor, ok := UnitPriceFactor(q.Unit, product.Unit)
		if !ok {
			droppedUnits[q.Unit]++
			continue
		}

		base := q.Price * factor
		logistics, known := logisticsPerUnit(q.SupplierState, location.StateCode(), weight)
		if !known {
			fallbackUsed = true
		}
		taxes := taxesPerUnit(base, location.StateCode(), organic)
		wastage := base * wastageFactors[category]

		out = append(out, NormalizedQuote{
			Quote:       q,
			UnitPrice:   base,
			MOQ:         convertMOQ(q.MOQ, factor),
			PriceBreaks: convertBreaks(q.PriceBreaks, factor),
			Cost:        models.NewEffectiveCost(base, logistics, taxes, wastage),
		})
	}

	for _, unit := range sortedCountKeys(droppedUnits) {
		limitations = append(limitations, fmt.Sprintf("dropped %d quote(s): unit %q not convertible to %q", droppedUnits[unit], unit, product.Unit))
	}
	for _, cur := range sortedCountKeys(droppedCurrency) {
		limitations = append(limitations, fmt.Sprintf("dropped %d quote(s): currency %s differs from %s", droppedCurrency[cur], cur, n.currency))
	}
	if invalidPrices > 0 {
		limitations = append(limitations, fmt.Sprintf("dropped %d quote(s): invalid price", invalidPrices))
	}
	if fallbackUsed {
		limitations = append(limitations, fmt.Sprintf("logistics estimated at fallback rate %.3f per unit: %s", FallbackLogisticsPerUnit, logisticsGap(location, weight)))
	}
	return out, limitations
}

func logisticsPerUnit(supplierState, farmState string, weight WeightClass) (float64, bool) {
	band, ok := DistanceBandFor(supplierState, farmState)
	if !ok || weight == WeightUnknown {
		return FallbackLogisticsPerUnit, false
	}
	freight := freightPerUnit[band] * weightMultipliers[weight]
	total := freight + freight*FuelSurchargeRate + HandlingFeePerUnit
	if remoteStates[farmState] {
		total += RemoteStatePremium
	}
	return total, true
}

func logisticsGap(location models.FarmLocation, weight WeightClass) string {
	switch {
	case location.StateCode() == "":
		return "delivery state unknown"
	case weight == WeightUnknown:
		return "product weight class unknown"
	default:
		return "supplier location unknown"
	}
}

func taxesPerUnit(base float64, state string, organic bool) float64 {
	taxes := base*SalesTaxRate(state) + RegulatoryFeePerUnit + base*PaymentProcessingRate
	if organic {
		taxes += OrganicCertFeePerUnit
	}
	return taxes
}

func isOrganic(p models.ProductRequest) bool {
	return strings.Contains(strings.ToLower(p.Name+" "+p.Specifications), "organic")
}

// convertMOQ restates a minimum order quantity in the product unit.
func convertMOQ(moq *int, factor float64) *float64 {
	if moq == nil || *moq <= 0 || factor <= 0 {
		return nil
	}
	v := float64(*moq) / factor
	return &v
}

func convertBreaks(breaks []models.PriceBreak, factor float64) []models.PriceBreak {
	if len(breaks) == 0 {
		return nil
	}
	out := make([]models.PriceBreak, 0, len(breaks))
	for _, b := range breaks {
		if b.Price <= 0 || b.MinQuantity <= 0 {
			continue
		}
		out = append(out, models.PriceBreak{MinQuantity: b.MinQuantity / factor, Price: b.Price * factor})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuantity < out[j].MinQuantity })
	return out
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
