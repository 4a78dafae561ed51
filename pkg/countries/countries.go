// Package countries validates ISO 3166-1 alpha-2 country codes.
package countries

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize trims whitespace and converts to uppercase.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// notCountries are codes CLDR treats as regions but ISO 3166-1 reserves
// for organizations and groupings.
var notCountries = map[string]bool{
	"EU": true, "EZ": true, "UN": true, "QO": true,
}

// IsValid reports whether code names a country. Macro-regions, private-use
// codes and UN M.49 numeric areas are rejected.
func IsValid(code string) bool {
	code = Normalize(code)
	if len(code) != 2 || notCountries[code] {
		return false
	}
	region, err := language.ParseRegion(code)
	return err == nil && region.IsCountry()
}

// Name returns the English name for a valid code, or "" otherwise.
func Name(code string) string {
	if !IsValid(code) {
		return ""
	}
	region := language.MustParseRegion(Normalize(code))
	return display.English.Regions().Name(region)
}
