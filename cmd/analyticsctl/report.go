package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/trailverse/analytics/internal/analytics"
	"github.com/trailverse/analytics/internal/cms"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
	"github.com/trailverse/analytics/internal/telemetry"
)

const reportTimeout = 30 * time.Second

func newReportCommand() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the admin dashboard as terminal tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err = requirePostgres(cfg, "report"); err != nil {
				return err
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), reportTimeout)
			defer cancel()

			db, err := storage.Connect(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("database connection: %w", err)
			}
			defer db.Close()

			engine := analytics.NewEngine(storage.NewPostgresStore(db))
			dashboard := analytics.NewDashboard(engine, cms.NewPostgresDirectory(db), telemetry.NewProvider(), log, nil)

			payload, err := dashboard.Build(ctx, p)
			if err != nil {
				return err
			}

			renderDashboard(cmd.OutOrStdout(), payload)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", string(domain.DefaultPeriod), "look-back period (24h, 7d, 30d or 90d)")
	return cmd
}

// renderDashboard writes one table per dashboard section.
func renderDashboard(w io.Writer, p *analytics.DashboardPayload) {
	fmt.Fprintf(w, "Period %s: %s to %s\n\n", p.Period,
		p.DateRange.Start.Format(time.RFC3339), p.DateRange.End.Format(time.RFC3339))

	overview := newTable(w, "Overview")
	overview.AppendHeader(table.Row{"Total Events", "Growth %", "Unique Users", "Events / User"})
	overview.AppendRow(table.Row{
		p.Overview.TotalEvents,
		fmt.Sprintf("%+.2f", p.Overview.GrowthRate),
		p.Overview.UniqueUsers,
		fmt.Sprintf("%.2f", p.Overview.AverageEventsPerUser),
	})
	renderSection(w, overview, 1)

	counts := newTable(w, "Events by Kind")
	counts.AppendHeader(table.Row{"Kind", "Count", "Unique Users"})
	for _, c := range p.EventCounts {
		counts.AppendRow(table.Row{c.EventKind, c.Count, c.UniqueUsers})
	}
	renderSection(w, counts, len(p.EventCounts))

	users := newTable(w, "Top Users")
	users.AppendHeader(table.Row{"User", "Name", "Events", "Sessions", "Kinds", "Active Hours"})
	for _, u := range p.TopUsers {
		users.AppendRow(table.Row{
			u.UserID, deref(u.Name), u.TotalEvents, u.UniqueSessions,
			u.DistinctEventKinds, fmt.Sprintf("%.2f", u.SessionDurationHours),
		})
	}
	renderSection(w, users, len(p.TopUsers))

	renderPopular(w, "Popular Parks", p.PopularContent.Parks)
	renderPopular(w, "Popular Blogs", p.PopularContent.Blogs)
	renderPopular(w, "Popular Events", p.PopularContent.Events)

	searches := newTable(w, "Top Searches")
	searches.AppendHeader(table.Row{"Term", "Count", "Unique Users", "Avg Results"})
	for _, s := range p.TopSearches {
		avg := "-"
		if s.AverageResultCount != nil {
			avg = fmt.Sprintf("%.1f", *s.AverageResultCount)
		}
		searches.AppendRow(table.Row{s.Term, s.Count, s.UniqueUsers, avg})
	}
	renderSection(w, searches, len(p.TopSearches))

	errs := newTable(w, "Top Errors")
	errs.AppendHeader(table.Row{"Code", "Message", "Count", "Unique Users", "Last Seen"})
	for _, e := range p.TopErrors {
		errs.AppendRow(table.Row{
			deref(e.ErrorCode), text.Trim(deref(e.ErrorMessage), maxMessageWidth),
			e.Count, e.UniqueUsers, e.LastOccurrence.Format(time.RFC3339),
		})
	}
	renderSection(w, errs, len(p.TopErrors))

	devices := newTable(w, "Devices")
	devices.AppendHeader(table.Row{"Device", "Count", "Browsers"})
	for _, d := range p.DeviceStats {
		devices.AppendRow(table.Row{d.DeviceType, d.Count, d.UniqueBrowsers})
	}
	renderSection(w, devices, len(p.DeviceStats))

	locations := newTable(w, "Locations")
	locations.AppendHeader(table.Row{"Country", "Count", "Regions"})
	for _, l := range p.LocationStats {
		locations.AppendRow(table.Row{l.Country, l.Count, l.UniqueRegions})
	}
	renderSection(w, locations, len(p.LocationStats))
}

const maxMessageWidth = 60

func renderPopular(w io.Writer, title string, rows []storage.ContentPopularity) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"Content", "Views", "Unique Users"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.ContentID, r.ViewCount, r.UniqueUsers})
	}
	renderSection(w, t, len(rows))
}

func newTable(w io.Writer, title string) section {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return section{Writer: t, title: title}
}

type section struct {
	table.Writer
	title string
}

// renderSection renders t, or a placeholder line when it has no rows.
func renderSection(w io.Writer, t section, rows int) {
	if rows == 0 {
		fmt.Fprintf(w, "%s: no data\n\n", t.title)
		return
	}
	t.Render()
	fmt.Fprintln(w)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
