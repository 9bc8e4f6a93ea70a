package traffic

import (
	"context"
	"time"
)

// StationSource loads the station list (e.g. a GBFS station_information feed).
type StationSource interface {
	Name() string
	FetchStations(ctx context.Context) ([]Station, error)
}

// TripSource loads trip records with timestamps already parsed.
type TripSource interface {
	Name() string
	// FetchTrips returns the parsed trips and how many rows had to be skipped.
	FetchTrips(ctx context.Context) (trips []Trip, skipped int, err error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveDataset(ds Dataset)
	GetLatest() (Dataset, error)
	GetRange(from, to time.Time) ([]DatasetInfo, error)
}
