// Package locate resolves the viewer's position from a GeoLite2 City database so the
// globe can open facing them.
package locate

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("location not found")

// Location is a resolved IP position.
type Location struct {
	City      string
	Country   string
	ISOCode   string
	Latitude  float64
	Longitude float64
}

// cityReader is the part of *geoip2.Reader used here.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Lookup opens the database at path and resolves ip.
func Lookup(path, ip string) (Location, error) {
	if path == "" {
		return Location{}, fmt.Errorf("no geoip database configured: %w", ErrNotFound)
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return Location{}, fmt.Errorf("open geoip database: %w", err)
	}
	defer db.Close()
	return lookup(db, ip)
}

func lookup(db cityReader, ipStr string) (Location, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}, fmt.Errorf("parse ip %q: %w", ipStr, ErrNotFound)
	}
	rec, err := db.City(ip)
	if err != nil {
		return Location{}, fmt.Errorf("lookup %s: %w", ipStr, err)
	}
	// Unknown networks decode to an empty record.
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 && rec.Country.IsoCode == "" {
		return Location{}, fmt.Errorf("lookup %s: %w", ipStr, ErrNotFound)
	}
	return Location{
		City:      rec.City.Names["en"],
		Country:   rec.Country.Names["en"],
		ISOCode:   rec.Country.IsoCode,
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, nil
}

// Home returns where the globe should face. ok is false when no location could be
// resolved; the failure is logged and the caller keeps its default view.
func Home(path, ip string, log logrus.FieldLogger) (lat, lon float64, ok bool) {
	if path == "" || ip == "" {
		return 0, 0, false
	}
	loc, err := Lookup(path, ip)
	if err != nil {
		log.WithError(err).Warn("viewer location unavailable, using default view")
		return 0, 0, false
	}
	log.WithFields(logrus.Fields{"city": loc.City, "country": loc.Country}).Info("globe faces viewer location")
	return loc.Latitude, loc.Longitude, true
}
