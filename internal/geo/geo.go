// Package geo computes the map viewport for a set of ranked facilities.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/stat"

	"echoair/internal/aggregate"
)

// Zoom levels used for the facility map.
const (
	ZoomClose = 7
	ZoomWide  = 5
)

// Marker is one plotted facility.
type Marker struct {
	FacilityID string  `json:"facility_id"`
	Name       string  `json:"name"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	Emission   float64 `json:"emission"`
}

// View is the viewport over a set of markers.
type View struct {
	// Valid is false when no facility had coordinates.
	Valid     bool    `json:"valid"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Zoom      int     `json:"zoom"`
	// MinLat, MinLon, MaxLat and MaxLon bound the markers.
	MinLat  float64  `json:"min_lat"`
	MinLon  float64  `json:"min_lon"`
	MaxLat  float64  `json:"max_lat"`
	MaxLon  float64  `json:"max_lon"`
	Markers []Marker `json:"markers"`
}

// ViewOf centers the map on the mean coordinate of the rows that carry both
// latitude and longitude. The zoom is close when the sample standard
// deviation of both axes is under one degree; a single facility has no
// spread and gets the wide zoom.
func ViewOf(rows []aggregate.FacilityRow) View {
	var (
		v    View
		lats []float64
		lons []float64
		flat []float64
	)
	for _, r := range rows {
		k := r.Key
		if !k.Latitude.Valid || !k.Longitude.Valid {
			continue
		}
		lats = append(lats, k.Latitude.Float64)
		lons = append(lons, k.Longitude.Float64)
		flat = append(flat, k.Longitude.Float64, k.Latitude.Float64)
		v.Markers = append(v.Markers, Marker{
			FacilityID: k.FacilityID,
			Name:       k.Name.String,
			Latitude:   k.Latitude.Float64,
			Longitude:  k.Longitude.Float64,
			Emission:   r.Emission,
		})
	}
	if len(lats) == 0 {
		v.Zoom = ZoomWide
		return v
	}

	v.Valid = true
	v.Latitude = stat.Mean(lats, nil)
	v.Longitude = stat.Mean(lons, nil)

	v.Zoom = ZoomWide
	if tight(lats) && tight(lons) {
		v.Zoom = ZoomClose
	}

	b := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	v.MinLon, v.MinLat = b.Min(0), b.Min(1)
	v.MaxLon, v.MaxLat = b.Max(0), b.Max(1)
	return v
}

func tight(xs []float64) bool {
	if len(xs) < 2 {
		return false
	}
	sd := stat.StdDev(xs, nil)
	return !math.IsNaN(sd) && sd < 1
}
