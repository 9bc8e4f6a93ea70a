package traffic

// Aggregate counts departures and arrivals for every station.
// Departures are keyed by the trip's start station, arrivals by its end station;
// identifiers that match no station are ignored. The input slices are not modified:
// the result holds copies of the stations, in the same order, with any previous
// counts replaced.
func Aggregate(stations []Station, trips []Trip) []Station {
	departures := make(map[string]int)
	arrivals := make(map[string]int)

	for _, t := range trips {
		departures[t.StartStationID]++
		arrivals[t.EndStationID]++
	}

	out := make([]Station, 0, len(stations))
	for _, s := range stations {
		s.Arrivals = arrivals[s.ShortName]
		s.Departures = departures[s.ShortName]
		s.TotalTraffic = s.Arrivals + s.Departures
		out = append(out, s)
	}

	return out
}

// Summarize totals an aggregated station table.
func Summarize(stations []Station, trips []Trip) Summary {
	sum := Summary{
		Trips:    len(trips),
		Stations: len(stations),
	}
	for _, s := range stations {
		sum.Arrivals += s.Arrivals
		sum.Departures += s.Departures
		if s.TotalTraffic > sum.MaxTraffic {
			sum.MaxTraffic = s.TotalTraffic
		}
		if s.TotalTraffic > 0 {
			sum.ActiveStations++
		}
	}
	return sum
}
