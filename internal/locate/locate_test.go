package locate

import (
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/oschwald/geoip2-golang"

	"sentiment-globe/internal/logger"
)

type fakeDB map[string]*geoip2.City

func (f fakeDB) City(ip net.IP) (*geoip2.City, error) {
	if rec, ok := f[ip.String()]; ok {
		return rec, nil
	}
	return &geoip2.City{}, nil
}

func TestLookup(t *testing.T) {
	rec := &geoip2.City{}
	rec.City.Names = map[string]string{"en": "Kansas City"}
	rec.Country.Names = map[string]string{"en": "United States"}
	rec.Country.IsoCode = "US"
	rec.Location.Latitude = 39.0997
	rec.Location.Longitude = -94.5786
	db := fakeDB{"203.0.113.7": rec}

	got, err := lookup(db, "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	want := Location{City: "Kansas City", Country: "United States", ISOCode: "US", Latitude: 39.0997, Longitude: -94.5786}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("location (-want +got):\n%s", diff)
	}

	if _, err := lookup(db, "198.51.100.1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown network: %v", err)
	}
	if _, err := lookup(db, "not-an-ip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bad ip: %v", err)
	}
}

func TestHomeFailuresKeepDefault(t *testing.T) {
	log := logger.Discard()
	if _, _, ok := Home("", "203.0.113.7", log); ok {
		t.Error("no database resolved a location")
	}
	missing := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	if _, _, ok := Home(missing, "203.0.113.7", log); ok {
		t.Error("missing database resolved a location")
	}
	if _, err := Lookup(missing, "203.0.113.7"); err == nil {
		t.Error("missing database opened")
	}
}
