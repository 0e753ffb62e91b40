package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

const EarthRadiusM = 6371000.0

// HashPrecision is fine enough (~15 cm cells) that two points sharing a hash
// are the same fix for routing purposes.
const HashPrecision = 11

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceM returns the great-circle distance in metres using the haversine formula.
func DistanceM(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func Hash(p Point) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, HashPrecision)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
