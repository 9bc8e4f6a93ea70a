package traffic

import (
	"fmt"
	"math"
)

// Radius ranges used by the map: unfiltered traffic is spread over a smaller
// range than a single time window so that quiet hours stay visible.
const (
	anyTimeMinRadius  = 0
	anyTimeMaxRadius  = 25
	filteredMinRadius = 3
	filteredMaxRadius = 50
)

// RadiusScale maps traffic counts to circle radii on a square-root scale,
// so circle area grows linearly with traffic.
type RadiusScale struct {
	DomainMax float64 `json:"domainMax"`
	RangeMin  float64 `json:"rangeMin"`
	RangeMax  float64 `json:"rangeMax"`
}

// NewRadiusScale picks the radius range for the filter and fits the domain to maxTraffic.
func NewRadiusScale(maxTraffic int, f TimeFilter) RadiusScale {
	s := RadiusScale{
		DomainMax: float64(maxTraffic),
		RangeMin:  anyTimeMinRadius,
		RangeMax:  anyTimeMaxRadius,
	}
	if !f.IsAnyTime() {
		s.RangeMin = filteredMinRadius
		s.RangeMax = filteredMaxRadius
	}
	return s
}

// Radius returns the circle radius for a traffic count. Values outside the domain are clamped.
func (s RadiusScale) Radius(traffic int) float64 {
	if s.DomainMax <= 0 || traffic <= 0 {
		return s.RangeMin
	}
	v := math.Min(float64(traffic), s.DomainMax)
	return s.RangeMin + (s.RangeMax-s.RangeMin)*math.Sqrt(v/s.DomainMax)
}

// FlowBucket quantizes the departure share of a station's traffic into
// 0 (mostly arrivals), 0.5 (balanced) or 1 (mostly departures).
// ok is false when the station had no traffic.
func FlowBucket(departures, total int) (bucket float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	ratio := float64(departures) / float64(total)
	switch {
	case ratio < 1.0/3:
		return 0, true
	case ratio < 2.0/3:
		return 0.5, true
	default:
		return 1, true
	}
}

// Tooltip is the hover text shown for a station circle.
func Tooltip(s Station) string {
	return fmt.Sprintf("%d trips (%d departures, %d arrivals)", s.TotalTraffic, s.Departures, s.Arrivals)
}

// Encode attaches radius, flow bucket and tooltip to aggregated stations.
func Encode(stations []Station, scale RadiusScale) []StationView {
	views := make([]StationView, 0, len(stations))
	for _, s := range stations {
		v := StationView{
			Station: s,
			Radius:  scale.Radius(s.TotalTraffic),
			Tooltip: Tooltip(s),
		}
		if bucket, ok := FlowBucket(s.Departures, s.TotalTraffic); ok {
			b := bucket
			v.DepartureRatio = &b
		}
		views = append(views, v)
	}
	return views
}
