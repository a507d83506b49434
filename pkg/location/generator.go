package location

import (
	"math"
	"math/rand/v2"
	"sync"
)

const earthRadiusKm = 6371.0

// Generator produces mock coordinates for clients that do not have a real
// GPS fix. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator with a random seed
func NewGenerator() *Generator {
	return NewSeededGenerator(rand.Uint64(), rand.Uint64())
}

// NewSeededGenerator creates a deterministic generator
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (g *Generator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

// Random returns a position anywhere on the globe
func (g *Generator) Random() Position {
	return Position{
		Lat: round4(g.float()*180 - 90),
		Lng: round4(g.float()*360 - 180),
	}
}

// Nearby returns a random position within radiusKm of origin, following a
// great circle from origin at a random bearing.
func (g *Generator) Nearby(origin Position, radiusKm float64) Position {
	if radiusKm <= 0 {
		return origin
	}

	// sqrt keeps the points uniform over the disc instead of clustering at the centre
	distance := radiusKm * math.Sqrt(g.float())
	bearing := g.float() * 2 * math.Pi
	angular := distance / earthRadiusKm

	lat1 := origin.Lat * math.Pi / 180
	lng1 := origin.Lng * math.Pi / 180

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(angular) + math.Cos(lat1)*math.Sin(angular)*math.Cos(bearing))
	lng2 := lng1 + math.Atan2(
		math.Sin(bearing)*math.Sin(angular)*math.Cos(lat1),
		math.Cos(angular)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Position{
		Lat: clamp(lat2*180/math.Pi, -90, 90),
		Lng: normalizeLng(lng2 * 180 / math.Pi),
	}
}

// DistanceKm returns the haversine distance between two positions
func DistanceKm(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
