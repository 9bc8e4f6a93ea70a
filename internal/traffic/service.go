package traffic

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStationNotFound is returned when a short name matches no loaded station.
var ErrStationNotFound = errors.New("station not found")

// Service orchestrates loading datasets from the sources and computing traffic views.
type Service struct {
	store    Store
	stations StationSource
	trips    TripSource

	// now is overridden in tests.
	now func() time.Time
}

// NewService creates a new Service.
func NewService(store Store, stations StationSource, trips TripSource) *Service {
	return &Service{
		store:    store,
		stations: stations,
		trips:    trips,
		now:      time.Now,
	}
}

// Refresh loads stations and trips concurrently and stores them as a new dataset.
// If either source fails the last good dataset is kept.
func (s *Service) Refresh(ctx context.Context) error {
	if s.stations == nil || s.trips == nil {
		log.Printf("ERROR: refresh called without station or trip source")
		return fmt.Errorf("station and trip sources must be configured")
	}

	var (
		wg          sync.WaitGroup
		stations    []Station
		trips       []Trip
		skipped     int
		stationsErr error
		tripsErr    error
	)

	log.Printf("DEBUG: refreshing dataset from %s and %s", s.stations.Name(), s.trips.Name())

	wg.Add(2)
	go func() {
		defer wg.Done()
		stations, stationsErr = s.stations.FetchStations(ctx)
		if stationsErr != nil {
			stationsErr = fmt.Errorf("%s: %w", s.stations.Name(), stationsErr)
		}
	}()
	go func() {
		defer wg.Done()
		trips, skipped, tripsErr = s.trips.FetchTrips(ctx)
		if tripsErr != nil {
			tripsErr = fmt.Errorf("%s: %w", s.trips.Name(), tripsErr)
		}
	}()
	wg.Wait()

	if err := errors.Join(stationsErr, tripsErr); err != nil {
		log.Printf("ERROR: refresh failed; keeping last good dataset if any: %v", err)
		return err
	}

	ds := Dataset{
		ID:           uuid.NewString(),
		LoadedAt:     s.now().UTC(),
		Stations:     stations,
		Trips:        trips,
		SkippedTrips: skipped,
	}
	s.store.SaveDataset(ds)

	log.Printf("INFO: dataset %s loaded: %d stations, %d trips (%d rows skipped)",
		ds.ID, len(stations), len(trips), skipped)
	return nil
}

// Traffic filters the latest dataset's trips by f and aggregates them per station.
func (s *Service) Traffic(f TimeFilter) (TrafficView, error) {
	if !f.Valid() {
		return TrafficView{}, fmt.Errorf("%w: %d", ErrInvalidTimeFilter, f)
	}

	ds, err := s.store.GetLatest()
	if err != nil {
		return TrafficView{}, err
	}

	trips := FilterByTime(ds.Trips, f)
	stations := Aggregate(ds.Stations, trips)
	summary := Summarize(stations, trips)
	scale := NewRadiusScale(summary.MaxTraffic, f)

	return TrafficView{
		DatasetID:  ds.ID,
		LoadedAt:   ds.LoadedAt,
		TimeFilter: f,
		TimeLabel:  f.String(),
		Summary:    summary,
		Scale:      scale,
		Stations:   Encode(stations, scale),
	}, nil
}

// StationTraffic returns a single station's view for the filter.
// The radius is scaled against all stations so it matches the full map.
func (s *Service) StationTraffic(shortName string, f TimeFilter) (StationView, error) {
	view, err := s.Traffic(f)
	if err != nil {
		return StationView{}, err
	}
	for _, st := range view.Stations {
		if st.ShortName == shortName {
			return st, nil
		}
	}
	return StationView{}, fmt.Errorf("%w: %s", ErrStationNotFound, shortName)
}

// History delegates to the underlying store.
func (s *Service) History(from, to time.Time) ([]DatasetInfo, error) {
	return s.store.GetRange(from, to)
}

// Latest returns metadata of the dataset currently served.
func (s *Service) Latest() (DatasetInfo, error) {
	ds, err := s.store.GetLatest()
	if err != nil {
		return DatasetInfo{}, err
	}
	return ds.Info(), nil
}
