package models

import (
	"fmt"
	"strings"
)

// ProductRequest is one input line of an analysis request. It is not
// modified once the analysis starts.
type ProductRequest struct {
	ID              string
	Name            string
	Quantity        float64
	Unit            string
	Specifications  string
	MaxPrice        *float64
	PreferredBrands []string
}

// FarmLocation is the delivery address used for logistics and tax lookups.
type FarmLocation struct {
	StreetAddress string
	City          string
	State         string
	County        string
	ZipCode       string
	Country       string
}

// StateCode returns the upper-cased two letter state code, or "" when unknown.
func (l FarmLocation) StateCode() string {
	return strings.ToUpper(strings.TrimSpace(l.State))
}

func (l FarmLocation) String() string {
	switch {
	case l.City != "" && l.State != "":
		return fmt.Sprintf("%s, %s", l.City, l.StateCode())
	case l.State != "":
		return l.StateCode()
	default:
		return l.City
	}
}

// Key is the normalized form used when building cache keys.
func (l FarmLocation) Key() string {
	return strings.ToLower(strings.TrimSpace(l.String()))
}
