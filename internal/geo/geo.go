// Package geo translates free-text addresses into geographic points
// via the OpenCage geocoding API.
package geo

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidAddress is returned when the provider finds no usable point
// for an address. Callers should treat it as a client-input error.
var ErrInvalidAddress = errors.New("please provide a valid address")

// Result holds a resolved geographic point plus the raw provider payload,
// retained for auditing and map display.
type Result struct {
	Lon float64
	Lat float64
	Raw json.RawMessage
}

// Geocoder resolves a free-text address to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}
