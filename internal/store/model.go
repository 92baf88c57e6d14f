// Package store reads countries, news and sentiment records from a backend and
// normalizes them for the views. Any backend failure is answered from the embedded
// offline dataset, so callers always get usable data along with its Origin.
package store

import (
	"sort"
	"strings"
	"time"

	"sentiment-globe/internal/sentiment"
)

type Table string

const (
	TableCountries Table = "countries"
	TableNews      Table = "news"
	TableSentiment Table = "sentiment_data"
)

// Origin tells whether data came from the backend or from the offline dataset.
type Origin int

const (
	Live Origin = iota
	Fallback
)

func (o Origin) String() string {
	if o == Fallback {
		return "fallback"
	}
	return "live"
}

func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Worse returns the less trustworthy of two origins.
func (o Origin) Worse(other Origin) Origin {
	if o == Fallback || other == Fallback {
		return Fallback
	}
	return Live
}

type Country struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Lat       float64        `json:"lat"`
	Lon       float64        `json:"lon"`
	NewsCount int            `json:"newsCount"`
	Sentiment sentiment.Band `json:"sentiment"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

// Color is the marker color for the country's band.
func (c Country) Color() string { return c.Sentiment.Hex() }

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity maps free-form severities onto high, medium or low. Unknown values are low.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "severe":
		return SeverityHigh
	case "medium", "moderate", "med":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Categories known to the panel. Anything else is kept verbatim.
var Categories = []string{"Technology", "Environment", "Entertainment", "Finance", "Politics", "Sports"}

// CanonicalCategory fixes the casing of known categories and fills in "General".
func CanonicalCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "General"
	}
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	return s
}

type NewsItem struct {
	ID        int64     `json:"id"`
	CountryID int64     `json:"countryId"`
	City      string    `json:"city"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Category  string    `json:"category"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// UnknownCity groups news without a city.
const UnknownCity = "Unknown"

// NewsByCity groups a country's news. Each slice is ordered most recent first.
type NewsByCity map[string][]NewsItem

// Cities returns the city names, busiest first and then alphabetically.
func (n NewsByCity) Cities() []string {
	out := make([]string, 0, len(n))
	for city := range n {
		out = append(out, city)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(n[out[i]]) != len(n[out[j]]) {
			return len(n[out[i]]) > len(n[out[j]])
		}
		return out[i] < out[j]
	})
	return out
}

// All flattens every city, most recent first.
func (n NewsByCity) All() []NewsItem {
	var out []NewsItem
	for _, items := range n {
		out = append(out, items...)
	}
	SortRecentFirst(out)
	return out
}

func (n NewsByCity) Total() int {
	total := 0
	for _, items := range n {
		total += len(items)
	}
	return total
}

// SortRecentFirst orders items by timestamp descending, breaking ties by id.
func SortRecentFirst(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].Timestamp.After(items[j].Timestamp)
		}
		return items[i].ID > items[j].ID
	})
}

// SentimentEntry colors one country on the 2D map.
type SentimentEntry struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Color string  `json:"color"`
}

// SentimentMap is keyed by Key(country name).
type SentimentMap map[string]SentimentEntry

// Lookup finds the entry for a country name in any of its spellings.
func (m SentimentMap) Lookup(name string) (SentimentEntry, bool) {
	e, ok := m[Key(name)]
	return e, ok
}

// Change signals that a table changed and should be re-fetched. Rows carries the
// changed records when the backend reports them; it may be empty.
type Change struct {
	Table Table
	Op    string
	Rows  []Row
}

// Touches reports whether the change may affect news of countryID. Changes without
// row details always match.
func (c Change) Touches(countryID int64) bool {
	if len(c.Rows) == 0 {
		return true
	}
	for _, r := range c.Rows {
		id, ok := r.Int("country_id", "countryId")
		if !ok || id == countryID {
			return true
		}
	}
	return false
}
