package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/bikeshare-traffic/internal/traffic"
)

// Timestamp layouts seen in bike-share trip exports, tried in order.
var tripTimeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

var requiredTripColumns = []string{"started_at", "ended_at", "start_station_id", "end_station_id"}

// TripCSV implements traffic.TripSource for monthly trip CSV exports.
// Timestamps without a zone are interpreted in loc.
type TripCSV struct {
	name     string
	location string
	loc      *time.Location
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewTripCSV(client *http.Client, location string, loc *time.Location) *TripCSV {
	if loc == nil {
		loc = time.UTC
	}
	return &TripCSV{
		name:     "trip-csv",
		location: location,
		loc:      loc,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("trip-csv"),
	}
}

func (s *TripCSV) Name() string {
	return s.name
}

func (s *TripCSV) FetchTrips(ctx context.Context) ([]traffic.Trip, int, error) {
	body, err := open(ctx, s.httpCfg, s.circuit, s.location)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()

	return ParseTrips(ctx, body, s.loc)
}

// ctxCheckEvery is how many rows are parsed between context checks.
const ctxCheckEvery = 1000

// ParseTrips reads a trip CSV with a header row. Rows with unparseable timestamps
// or malformed CSV are skipped and counted; read errors from r abort the parse.
func ParseTrips(ctx context.Context, r io.Reader, loc *time.Location) ([]traffic.Trip, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read trip header: %w", err)
	}

	idx := makeIndex(header)
	for _, col := range requiredTripColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, fmt.Errorf("trip csv missing column %q", col)
		}
	}

	var (
		trips   []traffic.Trip
		skipped int
	)

	for row := 1; ; row++ {
		if row%ctxCheckEvery == 0 && ctx.Err() != nil {
			return nil, skipped, ctx.Err()
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read trip csv: %w", err)
		}
		if len(record) < len(header) {
			skipped++
			continue
		}

		started, err := parseTripTime(record[idx["started_at"]], loc)
		if err != nil {
			skipped++
			continue
		}
		ended, err := parseTripTime(record[idx["ended_at"]], loc)
		if err != nil {
			skipped++
			continue
		}

		trip := traffic.Trip{
			StartStationID: strings.TrimSpace(record[idx["start_station_id"]]),
			EndStationID:   strings.TrimSpace(record[idx["end_station_id"]]),
			StartedAt:      started,
			EndedAt:        ended,
		}
		if i, ok := idx["ride_id"]; ok {
			trip.RideID = strings.TrimSpace(record[i])
		}
		trips = append(trips, trip)
	}

	if skipped > 0 {
		log.Printf("INFO: trip csv: skipped %d malformed rows", skipped)
	}

	return trips, skipped, nil
}

func parseTripTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range tripTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid trip timestamp %q", s)
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}
