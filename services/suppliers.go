package services

import (
	"sort"
	"strings"

	"github.com/Valeamar/tidal2025/models"
)

// DefaultSupplierListSize is how many suppliers a product result lists.
const DefaultSupplierListSize = 3

// RankSuppliers keeps the cheapest quote of each supplier and orders them by
// effective price ascending, then reliability descending, then name.
func RankSuppliers(quotes []NormalizedQuote) []NormalizedQuote {
	best := make(map[string]NormalizedQuote, len(quotes))
	var order []string
	for _, q := range quotes {
		key := strings.ToLower(strings.TrimSpace(q.Quote.SupplierName))
		cur, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = q
			continue
		}
		if q.Cost.Total < cur.Cost.Total {
			best[key] = q
		}
	}

	ranked := make([]NormalizedQuote, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, best[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Cost.Total != b.Cost.Total {
			return a.Cost.Total < b.Cost.Total
		}
		ra, rb := reliability(a.Quote), reliability(b.Quote)
		if ra != rb {
			return ra > rb
		}
		return a.Quote.SupplierName < b.Quote.SupplierName
	})
	return ranked
}

// TopSuppliers maps the first n ranked quotes to supplier entries.
func TopSuppliers(ranked []NormalizedQuote, n int) []models.Supplier {
	if n <= 0 || n > len(ranked) {
		n = len(ranked)
	}
	out := make([]models.Supplier, 0, n)
	for _, q := range ranked[:n] {
		out = append(out, models.Supplier{
			Name:           q.Quote.SupplierName,
			BasePrice:      roundCents(q.UnitPrice),
			EffectivePrice: roundCents(q.Cost.Total),
			LeadTimeDays:   q.Quote.LeadTimeDays,
			Reliability:    q.Quote.Reliability,
			MOQ:            q.MOQ,
			ContactInfo:    q.Quote.ContactInfo,
			State:          q.Quote.SupplierState,
		})
	}
	return out
}

func reliability(q models.PriceQuote) float64 {
	if q.Reliability == nil {
		return 0
	}
	return *q.Reliability
}

// MeanUnitCost averages the cost components of quotes whose total was kept
// by outlier removal.
func MeanUnitCost(quotes []NormalizedQuote, retained []float64) *models.EffectiveCost {
	keep := make(map[float64]int, len(retained))
	for _, v := range retained {
		keep[v]++
	}
	var base, logistics, taxes, wastage float64
	var n int
	for _, q := range quotes {
		if keep[q.Cost.Total] == 0 {
			continue
		}
		keep[q.Cost.Total]--
		base += q.Cost.Base
		logistics += q.Cost.Logistics
		taxes += q.Cost.Taxes
		wastage += q.Cost.Wastage
		n++
	}
	if n == 0 {
		return nil
	}
	d := float64(n)
	c := models.NewEffectiveCost(roundCents(base/d), roundCents(logistics/d), roundCents(taxes/d), roundCents(wastage/d))
	return &c
}
