package store

import (
	"strings"

	"github.com/biter777/countries"
)

// Short forms that the dataset and boundary files use and that the country
// registry spells differently.
var aliases = map[string]string{
	"usa":                      "United States",
	"us":                       "United States",
	"united states of america": "United States",
	"uk":                       "United Kingdom",
	"england":                  "United Kingdom",
	"uae":                      "United Arab Emirates",
	"czech republic":           "Czechia",
	"south korea":              "Korea, Republic of",
	"north korea":              "Korea, Democratic People's Republic of",
	"russia":                   "Russian Federation",
	"iran":                     "Iran, Islamic Republic of",
	"syria":                    "Syrian Arab Republic",
	"vietnam":                  "Viet Nam",
	"laos":                     "Lao People's Democratic Republic",
	"bolivia":                  "Bolivia, Plurinational State of",
	"venezuela":                "Venezuela, Bolivarian Republic of",
	"tanzania":                 "Tanzania, United Republic of",
	"dem. rep. congo":          "Congo, The Democratic Republic of the",
	"republic of serbia":       "Serbia",
	"ivory coast":              "Côte d'Ivoire",
}

// Key returns a join key for a country name so that "USA", "United States" and
// "United States of America" meet. Names the registry does not know fall back to a
// lower-cased form.
func Key(name string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if norm == "" {
		return ""
	}
	lookup := name
	if alias, ok := aliases[norm]; ok {
		lookup = alias
	}
	if code := countries.ByName(lookup); code != countries.Unknown {
		return code.Alpha3()
	}
	return norm
}

// DisplayName returns the registry's English name, or name unchanged when unknown.
func DisplayName(name string) string {
	lookup := name
	if alias, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		lookup = alias
	}
	if code := countries.ByName(lookup); code != countries.Unknown {
		return code.String()
	}
	return name
}
