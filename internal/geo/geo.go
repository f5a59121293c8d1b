package geo

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/example/rider-dispatch/internal/models"
)

// ErrInvalidCoord is returned by Upsert when a coordinate is missing the
// WGS-84 range or not a number at all.
var ErrInvalidCoord = errors.New("geo: invalid coordinate")

// Registry is the geospatial index of riders currently available for
// delivery. Nearby and ListAll never return an error: a backend failure is
// logged by the implementation and surfaces as an empty result, so callers
// treat "registry down" and "no riders" identically.
type Registry interface {
	Upsert(ctx context.Context, riderID string, lng, lat float64) error
	Remove(ctx context.Context, riderID string) error
	Nearby(ctx context.Context, lng, lat, radiusKm float64, limit int) []string
	ListAll(ctx context.Context) []string
}

func validCoord(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Index is an in-memory Registry used in tests and redis-less local runs.
type Index struct {
	mu     sync.RWMutex
	riders map[string]models.Coord
}

func NewIndex() *Index {
	return &Index{riders: make(map[string]models.Coord)}
}

func (g *Index) Upsert(_ context.Context, riderID string, lng, lat float64) error {
	if riderID == "" || !validCoord(lng, lat) {
		return ErrInvalidCoord
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.riders[riderID] = models.Coord{Lat: lat, Lng: lng}
	return nil
}

func (g *Index) Remove(_ context.Context, riderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.riders, riderID)
	return nil
}

// naive scan; in prod use the redis-backed registry
func (g *Index) Nearby(_ context.Context, lng, lat, radiusKm float64, limit int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		id   string
		dist float64
	}
	arr := make([]pair, 0, len(g.riders))
	for id, c := range g.riders {
		dist := Haversine(lat, lng, c.Lat, c.Lng)
		if dist <= radiusKm*1000 {
			arr = append(arr, pair{id, dist})
		}
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].id)
	}
	return out
}

func (g *Index) ListAll(_ context.Context) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.riders))
	for id := range g.riders {
		out = append(out, id)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
