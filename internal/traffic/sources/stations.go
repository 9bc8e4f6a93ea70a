package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/bikeshare-traffic/internal/common"
	"github.com/i474232898/bikeshare-traffic/internal/traffic"
)

// StationFeed implements traffic.StationSource for GBFS-style station JSON
// ({"data": {"stations": [...]}}), served over HTTP or stored on disk.
type StationFeed struct {
	name     string
	location string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewStationFeed(client *http.Client, location string) *StationFeed {
	return &StationFeed{
		name:     "station-feed",
		location: location,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("station-feed"),
	}
}

func (f *StationFeed) Name() string {
	return f.name
}

func (f *StationFeed) FetchStations(ctx context.Context) ([]traffic.Station, error) {
	body, err := open(ctx, f.httpCfg, f.circuit, f.location)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var payload struct {
		Data struct {
			Stations []struct {
				ShortName string  `json:"short_name"`
				Name      string  `json:"name"`
				Lat       float64 `json:"lat"`
				Lon       float64 `json:"lon"`
				Capacity  int     `json:"capacity"`
			} `json:"stations"`
		} `json:"data"`
	}

	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode station feed: %w", err)
	}

	stations := make([]traffic.Station, 0, len(payload.Data.Stations))
	seen := make(map[string]bool, len(payload.Data.Stations))
	for _, s := range payload.Data.Stations {
		code := strings.TrimSpace(s.ShortName)
		if code == "" {
			continue
		}
		if seen[code] {
			log.Printf("INFO: station feed: duplicate short name %s; keeping first", code)
			continue
		}
		seen[code] = true

		stations = append(stations, traffic.Station{
			ShortName: code,
			Name:      common.FirstNonEmpty(s.Name, code),
			Lat:       s.Lat,
			Lon:       s.Lon,
			Capacity:  s.Capacity,
		})
	}

	return stations, nil
}
