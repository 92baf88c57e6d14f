package panel

import (
	"fmt"
	"strings"
	"time"

	"sentiment-globe/internal/store"
)

type Activity int

const (
	Low Activity = iota
	Medium
	High
)

// ActivityFor classifies a city by its article count.
func ActivityFor(articles int) Activity {
	switch {
	case articles > 15:
		return High
	case articles > 10:
		return Medium
	}
	return Low
}

func (a Activity) Hex() string {
	switch a {
	case High:
		return "#ff4444"
	case Medium:
		return "#ffaa00"
	}
	return "#44ff44"
}

func (a Activity) Legend() string {
	switch a {
	case High:
		return "High Activity (15+)"
	case Medium:
		return "Medium Activity (10-15)"
	}
	return "Low Activity (0-10)"
}

// City summarizes one city of the selected country.
type City struct {
	Name     string
	Articles int
	Activity Activity
}

// Cities summarizes news in the order of NewsByCity.Cities.
func Cities(news store.NewsByCity) []City {
	names := news.Cities()
	out := make([]City, 0, len(names))
	for _, name := range names {
		n := len(news[name])
		out = append(out, City{Name: name, Articles: n, Activity: ActivityFor(n)})
	}
	return out
}

// ActivityPercent is the width of the news-count bar, capped at 100.
func ActivityPercent(newsCount int) float64 {
	p := float64(newsCount) * 1.5
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// HourlyCounts buckets items into the 24 hours ending at now. Index 23 is the
// current hour; older items are ignored.
func HourlyCounts(items []store.NewsItem, now time.Time) [24]int {
	var counts [24]int
	end := now.Truncate(time.Hour).Add(time.Hour)
	for _, it := range items {
		if it.Timestamp.IsZero() || !it.Timestamp.Before(end) {
			continue
		}
		ago := int(end.Sub(it.Timestamp) / time.Hour)
		if ago < 24 {
			counts[23-ago]++
		}
	}
	return counts
}

// BarGraph draws counts as three rows of '#', '=' and '_' with the maximum and zero
// labelled on the left. It returns nil when there is nothing to show.
func BarGraph(counts [24]int) []string {
	maxVal := 0
	for _, c := range counts {
		if c > maxVal {
			maxVal = c
		}
	}
	if maxVal == 0 {
		return nil
	}

	lines := make([]string, 3)
	maxValStr := fmt.Sprintf("%d", maxVal)
	labelWidth := len(maxValStr)

	for lineIdx := 0; lineIdx < 3; lineIdx++ {
		var sb strings.Builder
		switch lineIdx {
		case 0:
			fmt.Fprintf(&sb, "%*s ", labelWidth, maxValStr)
		case 2:
			fmt.Fprintf(&sb, "%*s ", labelWidth, "0")
		default:
			fmt.Fprintf(&sb, "%*s ", labelWidth, "")
		}

		lineHeight := float64(3 - lineIdx)
		for _, count := range counts {
			h := float64(count) / float64(maxVal) * 3
			switch {
			case h >= lineHeight:
				sb.WriteByte('#')
			case h > lineHeight-1:
				rem := h - (lineHeight - 1)
				switch {
				case rem >= 0.66:
					sb.WriteByte('#')
				case rem >= 0.33:
					sb.WriteByte('=')
				default:
					sb.WriteByte('_')
				}
			default:
				sb.WriteByte(' ')
			}
		}
		lines[lineIdx] = sb.String()
	}
	return lines
}
