package traffic

import (
	"time"
)

// Station is a bike-share dock location keyed by its short code.
// Arrivals, Departures and TotalTraffic are derived from the trips last aggregated.
type Station struct {
	ShortName string  `json:"short_name"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`

	Arrivals     int `json:"arrivals"`
	Departures   int `json:"departures"`
	TotalTraffic int `json:"totalTraffic"`
}

// Trip is a single rental from one station to another.
type Trip struct {
	RideID         string    `json:"ride_id"`
	StartStationID string    `json:"start_station_id"`
	EndStationID   string    `json:"end_station_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// Dataset is one load of stations and trips from the configured sources.
type Dataset struct {
	ID       string    `json:"id"`
	LoadedAt time.Time `json:"loadedAt"` // always UTC
	Stations []Station `json:"stations"`
	Trips    []Trip    `json:"trips"`

	// SkippedTrips counts rows the trip source could not parse.
	SkippedTrips int `json:"skippedTrips"`
}

// Info returns the dataset metadata without the station and trip payload.
func (d Dataset) Info() DatasetInfo {
	return DatasetInfo{
		ID:           d.ID,
		LoadedAt:     d.LoadedAt,
		StationCount: len(d.Stations),
		TripCount:    len(d.Trips),
		SkippedTrips: d.SkippedTrips,
	}
}

// DatasetInfo summarizes a stored dataset.
type DatasetInfo struct {
	ID           string    `json:"id"`
	LoadedAt     time.Time `json:"loadedAt"`
	StationCount int       `json:"stationCount"`
	TripCount    int       `json:"tripCount"`
	SkippedTrips int       `json:"skippedTrips"`
}

// StationView is a station with the visual encodings a map renderer needs.
type StationView struct {
	Station

	Radius float64 `json:"radius"`
	// DepartureRatio is the quantized share of departures (0, 0.5 or 1).
	// Nil when the station saw no traffic.
	DepartureRatio *float64 `json:"departureRatio,omitempty"`
	Tooltip        string   `json:"tooltip"`
}

// Summary holds totals for one traffic computation.
type Summary struct {
	Trips          int `json:"trips"`
	Stations       int `json:"stations"`
	Arrivals       int `json:"arrivals"`
	Departures     int `json:"departures"`
	MaxTraffic     int `json:"maxTraffic"`
	ActiveStations int `json:"activeStations"`
}

// TrafficView is the aggregated station table for one time filter.
type TrafficView struct {
	DatasetID  string        `json:"datasetId"`
	LoadedAt   time.Time     `json:"loadedAt"`
	TimeFilter TimeFilter    `json:"timeFilter"`
	TimeLabel  string        `json:"timeLabel"`
	Summary    Summary       `json:"summary"`
	Scale      RadiusScale   `json:"radiusScale"`
	Stations   []StationView `json:"stations"`
}
