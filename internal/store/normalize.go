package store

import (
	"sort"
	"strings"

	"sentiment-globe/internal/geo"
	"sentiment-globe/internal/sentiment"
)

// CountryFromRow converts a countries row. ok is false when the row has no positive
// id, no name or no usable coordinates.
func CountryFromRow(r Row) (Country, bool) {
	id, okID := r.Int("id")
	name := r.String("name", "NAME", "country_name", "country")
	lat, okLat := r.Float("lat", "latitude")
	lon, okLon := r.Float("lon", "lng", "longitude")
	if !okID || id <= 0 || name == "" || !okLat || !okLon {
		return Country{}, false
	}

	c := Country{ID: id, Name: name, Lat: geo.ClampLat(lat), Lon: geo.NormalizeLon(lon)}

	if count, ok := r.Int("news_count", "newsCount"); ok {
		if count < 0 {
			count = 0
		}
		c.NewsCount = int(count)
		c.Sentiment = sentiment.BandFor(c.NewsCount)
	} else if b, err := sentiment.ParseLabel(r.String("sentiment")); err == nil {
		c.Sentiment = b
	} else {
		c.Sentiment = sentiment.Neutral
	}

	if ts, ok := r.Time("updated_at", "updatedAt"); ok {
		c.UpdatedAt = ts
	}
	return c, true
}

// Countries converts rows and orders them by name.
func Countries(rows []Row) []Country {
	out := make([]Country, 0, len(rows))
	for _, r := range rows {
		if c, ok := CountryFromRow(r); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// NewsItemFromRow converts a news row. Missing cities become UnknownCity.
func NewsItemFromRow(r Row) NewsItem {
	n := NewsItem{
		City:     r.String("city"),
		Title:    r.String("title"),
		Summary:  r.String("summary", "description"),
		Category: CanonicalCategory(r.String("category")),
		Severity: ParseSeverity(r.String("severity")),
	}
	if n.City == "" {
		n.City = UnknownCity
	}
	if id, ok := r.Int("id"); ok {
		n.ID = id
	}
	if id, ok := r.Int("country_id", "countryId"); ok {
		n.CountryID = id
	}
	if ts, ok := r.Time("timestamp", "published_at", "created_at"); ok {
		n.Timestamp = ts
	}
	return n
}

// GroupNews groups rows by city, each city most recent first.
func GroupNews(rows []Row) NewsByCity {
	out := NewsByCity{}
	for _, r := range rows {
		n := NewsItemFromRow(r)
		out[n.City] = append(out[n.City], n)
	}
	for _, items := range out {
		SortRecentFirst(items)
	}
	return out
}

// Sentiments converts sentiment rows into a lookup keyed by Key(name).
// Rows whose color is not a hex color keep an empty Color.
func Sentiments(rows []Row) SentimentMap {
	out := SentimentMap{}
	for _, r := range rows {
		name := r.String("country_name", "name", "NAME")
		if name == "" {
			continue
		}
		e := SentimentEntry{Name: name}
		if score, ok := r.Float("sentiment_score", "score"); ok {
			e.Score = score
		}
		if color := r.String("color_code", "color"); color != "" {
			if _, ok := sentiment.ParseHex(color); ok {
				e.Color = color
			}
		}
		out[Key(name)] = e
	}
	return out
}
