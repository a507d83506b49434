package location

import (
	"encoding/json"
	"fmt"
	"math"
)

// Position is a latitude/longitude pair. On the wire it is the two element
// array [lat, lng].
type Position struct {
	Lat float64
	Lng float64
}

// Validate reports whether the coordinates are finite and within range.
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidPosition)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidPosition, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidPosition, p.Lng)
	}
	return nil
}

// MarshalJSON encodes the position as [lat, lng]
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON decodes [lat, lng]. Anything other than exactly two numbers
// is rejected with ErrInvalidPosition. Range checks are left to Validate so
// callers can decide when to enforce them.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: send [latitude, longitude]", ErrInvalidPosition)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected 2 coordinates, got %d", ErrInvalidPosition, len(pair))
	}
	p.Lat, p.Lng = pair[0], pair[1]
	return nil
}

// String returns a human readable form
func (p Position) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}
