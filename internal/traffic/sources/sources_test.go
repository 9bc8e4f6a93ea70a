package sources

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"
)

const stationJSON = `{
  "data": {
    "stations": [
      {"short_name": "M32006", "name": "MIT at Mass Ave", "lat": 42.3581, "lon": -71.0936, "capacity": 27},
      {"short_name": "", "name": "No code", "lat": 42.1, "lon": -71.1},
      {"short_name": "M32006", "name": "Duplicate", "lat": 0, "lon": 0},
      {"short_name": "A32000", "lat": 42.35, "lon": -71.06}
    ]
  }
}`

const tripCSV = "ride_id,rideable_type,started_at,ended_at,start_station_name,start_station_id,end_station_name,end_station_id\n" +
	"r1,classic_bike,2024-03-01 08:00:05.123,2024-03-01 08:12:44.000,MIT,M32006,Boston,A32000\n" +
	"r2,electric_bike,2024-03-01 17:45:00,2024-03-01 18:02:10,Boston,A32000,MIT,M32006\n" +
	"r3,classic_bike,not-a-date,2024-03-01 18:02:10,Boston,A32000,MIT,M32006\n" +
	"r4,classic_bike,2024-03-01T09:00:00-05:00,2024-03-01T09:20:00-05:00,Boston,A32000,,\n"

var fastBackoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func TestStationFeedHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(stationJSON))
	}))
	defer srv.Close()

	feed := NewStationFeed(srv.Client(), srv.URL)
	stations, err := feed.FetchStations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].ShortName != "M32006" || stations[0].Name != "MIT at Mass Ave" || stations[0].Capacity != 27 {
		t.Fatalf("unexpected first station %+v", stations[0])
	}
	if stations[1].Name != "A32000" {
		t.Fatalf("expected missing name to fall back to the short name, got %q", stations[1].Name)
	}
}

// TestStationFeedRetriesServerErrors fails the first request and expects the
// feed to retry.
func TestStationFeedRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(stationJSON))
	}))
	defer srv.Close()

	feed := NewStationFeed(srv.Client(), srv.URL)
	feed.httpCfg.Backoff = fastBackoff

	if _, err := feed.FetchStations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestStationFeedDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	feed := NewStationFeed(srv.Client(), srv.URL)
	feed.httpCfg.Backoff = fastBackoff

	if _, err := feed.FetchStations(context.Background()); err == nil {
		t.Fatalf("expected error for 404")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

func TestTripCSVFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.csv")
	if err := os.WriteFile(path, []byte(tripCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	boston, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	src := NewTripCSV(nil, path, boston)
	trips, skipped, err := src.FetchTrips(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d", skipped)
	}
	if len(trips) != 3 {
		t.Fatalf("expected 3 trips, got %d", len(trips))
	}

	first := trips[0]
	if first.RideID != "r1" || first.StartStationID != "M32006" || first.EndStationID != "A32000" {
		t.Fatalf("unexpected first trip %+v", first)
	}
	if first.StartedAt.Hour() != 8 || first.StartedAt.Location() != boston {
		t.Fatalf("expected 08:00 local time, got %s", first.StartedAt)
	}
	if trips[2].EndStationID != "" {
		t.Fatalf("expected empty end station to be kept as unmatched, got %q", trips[2].EndStationID)
	}
}

func TestTripCSVFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(tripCSV))
	}))
	defer srv.Close()

	src := NewTripCSV(srv.Client(), srv.URL, time.UTC)
	trips, _, err := src.FetchTrips(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trips) != 3 {
		t.Fatalf("expected 3 trips, got %d", len(trips))
	}
}

func TestParseTripsMissingColumn(t *testing.T) {
	_, _, err := ParseTrips(context.Background(), strings.NewReader("ride_id,started_at,ended_at\nr1,a,b\n"), time.UTC)
	if err == nil || !strings.Contains(err.Error(), "start_station_id") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestParseTripsHeaderWithBOM(t *testing.T) {
	in := "\ufeffstarted_at,ended_at,start_station_id,end_station_id\n" +
		"2024-03-01 10:00:00,2024-03-01 10:30:00,A,B\n"

	trips, skipped, err := ParseTrips(context.Background(), strings.NewReader(in), time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trips) != 1 || skipped != 0 {
		t.Fatalf("expected 1 trip and no skips, got %d trips, %d skipped", len(trips), skipped)
	}
}

func TestOpenWithoutLocation(t *testing.T) {
	if _, err := NewStationFeed(http.DefaultClient, "").FetchStations(context.Background()); err == nil {
		t.Fatalf("expected error without a location")
	}
}

func TestTripCSVDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewTripCSV(srv.Client(), srv.URL, time.UTC)
	src.httpCfg.Backoff = fastBackoff

	if _, _, err := src.FetchTrips(context.Background()); !errors.Is(err, errUnexpected) {
		t.Fatalf("expected unexpected status error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

// TestParseTripsReadErrorAfterHeader makes sure a failing body ends the parse
// with an error instead of counting the same failure as bad rows forever.
func TestParseTripsReadErrorAfterHeader(t *testing.T) {
	reset := errors.New("connection reset by peer")
	body := io.MultiReader(
		strings.NewReader("started_at,ended_at,start_station_id,end_station_id\n"+
			"2024-03-01 10:00:00,2024-03-01 10:30:00,A,B\n"),
		iotest.ErrReader(reset),
	)

	done := make(chan error, 1)
	go func() {
		_, _, err := ParseTrips(context.Background(), body, time.UTC)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, reset) {
			t.Fatalf("expected read error to be returned, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("ParseTrips did not return on a persistent read error")
	}
}

func TestParseTripsSkipsMalformedCSV(t *testing.T) {
	in := "started_at,ended_at,start_station_id,end_station_id\n" +
		"2024-03-01 10:00:00,2024-03-01 10:30:00,\"A\"x,B\n" +
		"2024-03-01 11:00:00,2024-03-01 11:30:00,B,A\n"

	trips, skipped, err := ParseTrips(context.Background(), strings.NewReader(in), time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trips) != 1 || skipped != 1 {
		t.Fatalf("expected 1 trip and 1 skipped row, got %d trips, %d skipped", len(trips), skipped)
	}
}

func TestParseTripsCancelledContext(t *testing.T) {
	var b strings.Builder
	b.WriteString("started_at,ended_at,start_station_id,end_station_id\n")
	for i := 0; i < 2*ctxCheckEvery; i++ {
		b.WriteString("2024-03-01 10:00:00,2024-03-01 10:30:00,A,B\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := ParseTrips(ctx, strings.NewReader(b.String()), time.UTC); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStationFeedMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"stations": [`))
	}))
	defer srv.Close()

	_, err := NewStationFeed(srv.Client(), srv.URL).FetchStations(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode station feed") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestParseTripsTrimsRideID(t *testing.T) {
	in := "ride_id,started_at,ended_at,start_station_id,end_station_id\n" +
		" r9 ,2024-03-01 10:00:00,2024-03-01 10:30:00, A , B\n"

	trips, _, err := ParseTrips(context.Background(), strings.NewReader(in), time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trips) != 1 || trips[0].RideID != "r9" || trips[0].StartStationID != "A" || trips[0].EndStationID != "B" {
		t.Fatalf("expected trimmed identifiers, got %+v", trips)
	}
}

func TestParseTripsLogsSkippedRows(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	in := "started_at,ended_at,start_station_id,end_station_id\n" +
		"yesterday,2024-03-01 10:30:00,A,B\n"
	if _, skipped, err := ParseTrips(context.Background(), strings.NewReader(in), time.UTC); err != nil || skipped != 1 {
		t.Fatalf("expected 1 skipped row, got %d, %v", skipped, err)
	}
	if !strings.Contains(buf.String(), "INFO: trip csv: skipped 1 malformed rows") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}
