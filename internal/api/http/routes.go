package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/bikeshare-traffic/internal/store"
	"github.com/i474232898/bikeshare-traffic/internal/traffic"
)

var validate = validator.New()

// refreshTimeout bounds a manually triggered dataset reload.
const refreshTimeout = 2 * time.Minute

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *traffic.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/traffic", func(c *fiber.Ctx) error {
		var q timeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		view, err := service.Traffic(q.filter())
		if err != nil {
			return trafficError(err)
		}

		return c.JSON(view)
	})

	v1.Get("/stations/:shortName/traffic", func(c *fiber.Ctx) error {
		var q timeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		station, err := service.StationTraffic(c.Params("shortName"), q.filter())
		if err != nil {
			return trafficError(err)
		}

		return c.JSON(fiber.Map{
			"timeFilter": q.filter(),
			"timeLabel":  q.filter().String(),
			"station":    station,
		})
	})

	v1.Get("/datasets/latest", func(c *fiber.Ctx) error {
		info, err := service.Latest()
		if err != nil {
			return trafficError(err)
		}
		return c.JSON(info)
	})

	v1.Get("/datasets/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		datasets, err := service.History(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no datasets loaded in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch dataset history")
		}

		return c.JSON(fiber.Map{
			"from":     req.From,
			"to":       req.To,
			"datasets": datasets,
		})
	})

	v1.Post("/datasets/refresh", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), refreshTimeout)
		defer cancel()

		if err := service.Refresh(ctx); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to refresh dataset: "+err.Error())
		}

		info, err := service.Latest()
		if err != nil {
			return trafficError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(info)
	})
}

// trafficError maps service errors onto HTTP status codes.
func trafficError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusServiceUnavailable, "traffic data has not been loaded yet")
	case errors.Is(err, traffic.ErrStationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, traffic.ErrInvalidTimeFilter):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute station traffic")
	}
}

// timeQuery holds the time-of-day slider value; -1 or absent means any time.
// ParseTimeFilter does the range check.
type timeQuery struct {
	Time traffic.TimeFilter
}

func (q *timeQuery) bind(c *fiber.Ctx) error {
	f, err := traffic.ParseTimeFilter(c.Query("time"))
	if err != nil {
		return err
	}
	q.Time = f
	return nil
}

func (q timeQuery) filter() traffic.TimeFilter {
	return q.Time
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
