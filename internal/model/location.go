// Package model holds the value types shared by the companion engine.
//
// Everything here is a snapshot: contexts are replaced wholesale when a newer
// fix or forecast arrives, and enriched activities are recomputed on every
// context change. Nothing in this package talks to the network or disk.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to an orb point (lng, lat order).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Valid reports whether the coordinates are inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Key rounds the coordinates to two decimals (~1.1 km) for cache keys.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.2f,%.2f", c.Lat, c.Lng)
}

// DistanceMeters returns the geodesic distance between two positions.
func DistanceMeters(a, b Coordinates) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// LocationContext is one resolved position fix.
type LocationContext struct {
	Coordinates Coordinates `json:"coordinates"`
	Accuracy    float64     `json:"accuracy"` // meters
	Timestamp   time.Time   `json:"timestamp"`
	Heading     *float64    `json:"heading,omitempty"` // degrees from north
	Speed       *float64    `json:"speed,omitempty"`   // m/s
	IsMoving    bool        `json:"isMoving"`

	City        string `json:"city,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Timezone    string `json:"timezone,omitempty"` // IANA name
}

// Location returns the *time.Location for the resolved timezone, or nil.
func (l *LocationContext) Location() *time.Location {
	if l == nil || l.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// Newer reports whether l supersedes other. A nil other is always superseded.
func (l LocationContext) Newer(other *LocationContext) bool {
	if other == nil {
		return true
	}
	return l.Timestamp.After(other.Timestamp)
}
