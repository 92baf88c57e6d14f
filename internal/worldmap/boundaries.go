package worldmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

const maxBoundaryBytes = 64 << 20

// Feature is one usable country outline.
type Feature struct {
	Name     string
	Geometry orb.MultiPolygon
	Sample   bool
	// Color is the fixed fill of sample rectangles.
	Color string
}

var errNoFeatures = errors.New("no usable features")

type sampleArea struct {
	name           string
	minLat, minLon float64
	maxLat, maxLon float64
}

var sampleAreas = []sampleArea{
	{"United States", 24.396308, -125.0, 49.384358, -66.93457},
	{"Canada", 41.676555, -141.0, 83.23324, -52.636291},
	{"Brazil", -33.750706, -73.982817, 5.264877, -32.392998},
	{"Russia", 41.151416, 19.66064, 81.857361, 180.0},
	{"China", 15.775279, 73.557693, 53.560974, 134.77281},
	{"Australia", -43.634597, 113.338953, -10.668187, 153.569469},
}

// SampleFeatures are the rectangles shown when the boundary source is unusable.
func SampleFeatures() []Feature {
	out := make([]Feature, 0, len(sampleAreas))
	for i, a := range sampleAreas {
		b := orb.Bound{Min: orb.Point{a.minLon, a.minLat}, Max: orb.Point{a.maxLon, a.maxLat}}
		out = append(out, Feature{
			Name:     a.name,
			Geometry: orb.MultiPolygon{b.ToPolygon()},
			Sample:   true,
			Color:    FallbackColors[i%len(FallbackColors)],
		})
	}
	return out
}

// LoadBoundaries fetches a GeoJSON FeatureCollection and returns its usable features.
// Any fetch or parse failure, or a collection without a single usable feature, is
// answered with SampleFeatures; sample reports which happened.
func LoadBoundaries(ctx context.Context, client *http.Client, url string, log logrus.FieldLogger) (features []Feature, sample bool) {
	log = log.WithField("url", url)

	data, err := fetchBoundaries(ctx, client, url)
	if err == nil {
		features, err = ParseBoundaries(data, log)
	}
	if err != nil {
		log.WithError(err).Warn("boundaries unavailable, showing sample countries")
		return SampleFeatures(), true
	}
	log.WithField("features", len(features)).Info("boundaries loaded")
	return features, false
}

func fetchBoundaries(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("no boundaries url")
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get boundaries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get boundaries: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBoundaryBytes))
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	return data, nil
}

type rawCollection struct {
	Features []json.RawMessage `json:"features"`
}

type rawFeature struct {
	Properties map[string]any `json:"properties"`
	Geometry   *rawGeometry   `json:"geometry"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseBoundaries decodes a FeatureCollection one feature at a time. Features without
// a polygon geometry are skipped and logged. Positions that are not pairs of finite
// numbers are replaced with (0, 0); a third altitude value is ignored.
func ParseBoundaries(data []byte, log logrus.FieldLogger) ([]Feature, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	var out []Feature
	for i, raw := range fc.Features {
		var rf rawFeature
		if err := json.Unmarshal(raw, &rf); err != nil {
			log.WithError(err).WithField("index", i).Warn("skipping undecodable feature")
			continue
		}
		name := featureName(rf.Properties)
		flog := log.WithField("country", name)

		if rf.Geometry == nil || isNull(rf.Geometry.Coordinates) {
			flog.Warn("skipping feature without geometry")
			continue
		}
		geom, err := decodeGeometry(rf.Geometry, flog)
		if err != nil {
			flog.WithError(err).Warn("skipping feature")
			continue
		}
		out = append(out, Feature{Name: name, Geometry: geom})
	}

	if len(out) == 0 {
		return nil, errNoFeatures
	}
	return out, nil
}

func featureName(props map[string]any) string {
	for _, key := range []string{"name", "NAME"} {
		if s, ok := props[key].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeGeometry(g *rawGeometry, log logrus.FieldLogger) (orb.MultiPolygon, error) {
	switch g.Type {
	case "Polygon":
		poly, err := decodePolygon(g.Coordinates, log)
		if err != nil {
			return nil, err
		}
		return orb.MultiPolygon{poly}, nil
	case "MultiPolygon":
		var parts []json.RawMessage
		if err := json.Unmarshal(g.Coordinates, &parts); err != nil {
			return nil, fmt.Errorf("multipolygon: %w", err)
		}
		mp := make(orb.MultiPolygon, 0, len(parts))
		for _, part := range parts {
			poly, err := decodePolygon(part, log)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("unsupported geometry %q", g.Type)
}

func decodePolygon(raw json.RawMessage, log logrus.FieldLogger) (orb.Polygon, error) {
	var rings [][]json.RawMessage
	if err := json.Unmarshal(raw, &rings); err != nil {
		return nil, fmt.Errorf("polygon rings: %w", err)
	}
	poly := make(orb.Polygon, 0, len(rings))
	bad := 0
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, pos := range ring {
			pt, ok := decodePosition(pos)
			if !ok {
				bad++
			}
			r = append(r, pt)
		}
		poly = append(poly, r)
	}
	if bad > 0 {
		log.WithField("positions", bad).Debug("replaced malformed coordinates")
	}
	return poly, nil
}

// decodePosition reads [lon, lat] or [lon, lat, alt].
func decodePosition(raw json.RawMessage) (orb.Point, bool) {
	var nums []json.RawMessage
	if err := json.Unmarshal(raw, &nums); err != nil || len(nums) < 2 || len(nums) > 3 {
		return orb.Point{}, false
	}
	var lon, lat float64
	if json.Unmarshal(nums[0], &lon) != nil || json.Unmarshal(nums[1], &lat) != nil {
		return orb.Point{}, false
	}
	if isNull(nums[0]) || isNull(nums[1]) || math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}
