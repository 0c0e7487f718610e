package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/cms"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
	"github.com/trailverse/analytics/internal/telemetry"
)

// Dashboard section sizes.
const (
	dashboardUsers    = 20
	dashboardContent  = 10
	dashboardSearches = 20
	dashboardErrors   = 10
)

// Overview is the headline block of the dashboard.
type Overview struct {
	TotalEvents          int64   `json:"totalEvents"`
	GrowthRate           float64 `json:"growthRate"`
	UniqueUsers          int64   `json:"uniqueUsers"`
	AverageEventsPerUser float64 `json:"averageEventsPerUser"`
}

// PopularContent holds the top items per dimension.
type PopularContent struct {
	Parks  []storage.ContentPopularity `json:"parks"`
	Blogs  []storage.ContentPopularity `json:"blogs"`
	Events []storage.ContentPopularity `json:"events"`
}

// DashboardPayload is the full admin dashboard.
type DashboardPayload struct {
	Period         domain.Period          `json:"period"`
	DateRange      domain.Window          `json:"dateRange"`
	Overview       Overview               `json:"overview"`
	EventCounts    []storage.EventCount   `json:"eventCounts"`
	TopUsers       []EngagedUser          `json:"topUsers"`
	PopularContent PopularContent         `json:"popularContent"`
	TopSearches    []storage.SearchTerm   `json:"topSearches"`
	TopErrors      []storage.ErrorGroup   `json:"topErrors"`
	DeviceStats    []storage.DeviceStat   `json:"deviceStats"`
	LocationStats  []storage.LocationStat `json:"locationStats"`
}

// Clock returns the current time.
type Clock func() time.Time

// Dashboard assembles the admin dashboard from concurrent aggregations.
type Dashboard struct {
	engine  *Engine
	users   cms.UserDirectory
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	log     logger.Logger
	now     Clock
}

// NewDashboard creates a Dashboard. A nil clock means time.Now.
func NewDashboard(
	engine *Engine,
	users cms.UserDirectory,
	tel *telemetry.Provider,
	log logger.Logger,
	clock Clock,
) *Dashboard {
	if clock == nil {
		clock = time.Now
	}
	return &Dashboard{
		engine:  engine,
		users:   users,
		tracer:  tel.Tracer,
		metrics: tel.Metrics,
		log:     log,
		now:     clock,
	}
}

// Build computes the dashboard for period. If any query fails the whole
// build fails.
func (d *Dashboard) Build(ctx context.Context, period domain.Period) (*DashboardPayload, error) {
	ctx, span := d.tracer.Start(ctx, "analytics.dashboard.build",
		trace.WithAttributes(attribute.String("analytics.period", string(period))),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		d.metrics.DashboardDuration.WithLabelValues(string(period)).Observe(time.Since(start).Seconds())
	}()

	payload, err := d.build(ctx, period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payload, nil
}

func (d *Dashboard) build(ctx context.Context, period domain.Period) (*DashboardPayload, error) {
	window := period.Window(d.now())
	payload := &DashboardPayload{Period: period, DateRange: window}

	var current, previous storage.Totals

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		current, err = d.engine.Totals(gctx, window)
		return err
	})
	g.Go(func() (err error) {
		previous, err = d.engine.Totals(gctx, window.Previous())
		if err != nil {
			return fmt.Errorf("previous window: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		payload.EventCounts, err = d.engine.EventCounts(gctx, window)
		return err
	})
	g.Go(func() error {
		page, err := d.engine.UserEngagement(gctx, window, storage.Page{Limit: dashboardUsers})
		if err != nil {
			return err
		}
		if enrichErr := EnrichUsers(gctx, d.users, page.Users); enrichErr != nil {
			return enrichErr
		}
		payload.TopUsers = page.Users
		return nil
	})
	g.Go(func() (err error) {
		payload.PopularContent.Parks, err = d.engine.PopularContent(gctx, window, storage.DimensionParks, dashboardContent)
		return err
	})
	g.Go(func() (err error) {
		payload.PopularContent.Blogs, err = d.engine.PopularContent(gctx, window, storage.DimensionBlogs, dashboardContent)
		return err
	})
	g.Go(func() (err error) {
		payload.PopularContent.Events, err = d.engine.PopularContent(gctx, window, storage.DimensionEvents, dashboardContent)
		return err
	})
	g.Go(func() (err error) {
		payload.TopSearches, err = d.engine.SearchAnalytics(gctx, window, dashboardSearches)
		return err
	})
	g.Go(func() (err error) {
		payload.TopErrors, err = d.engine.ErrorAnalytics(gctx, window, dashboardErrors)
		return err
	})
	g.Go(func() (err error) {
		payload.DeviceStats, err = d.engine.DeviceStats(gctx, window)
		return err
	})
	g.Go(func() (err error) {
		payload.LocationStats, err = d.engine.LocationStats(gctx, window, DefaultCountries)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}

	payload.Overview = Overview{
		TotalEvents:          current.TotalEvents,
		GrowthRate:           GrowthRate(current.TotalEvents, previous.TotalEvents),
		UniqueUsers:          current.UniqueUsers,
		AverageEventsPerUser: perUser(current.TotalEvents, current.UniqueUsers),
	}

	d.log.Debug("Dashboard built",
		logger.String("period", string(period)),
		logger.Int64("total_events", current.TotalEvents),
		logger.Int64("previous_events", previous.TotalEvents),
	)
	return payload, nil
}

// GrowthRate is the percentage change from previous to current, rounded to
// two decimals. It is 0 when previous is 0.
func GrowthRate(current, previous int64) float64 {
	if previous == 0 {
		return 0
	}
	return round2(float64(current-previous) / float64(previous) * 100)
}

func perUser(events, users int64) float64 {
	if users == 0 {
		return 0
	}
	return round2(float64(events) / float64(users))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
