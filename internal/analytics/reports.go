package analytics

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/cms"
	"github.com/trailverse/analytics/internal/domain"
	"github.com/trailverse/analytics/internal/storage"
)

// ContentTypeAll selects every content dimension.
const ContentTypeAll = "all"

// Pagination describes a page of a ranked report.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// UsersReport is the paginated user engagement report.
type UsersReport struct {
	Users      []EngagedUser `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// ContentReport holds popularity rankings. Dimensions that were not
// requested are null.
type ContentReport struct {
	Parks  []storage.ContentPopularity `json:"parks"`
	Blogs  []PopularBlog               `json:"blogs"`
	Events []storage.ContentPopularity `json:"events"`
}

// Reports builds the admin report endpoints. CMS enrichment here is best
// effort: a directory failure is logged and the report is returned without
// profile fields.
type Reports struct {
	engine *Engine
	users  cms.UserDirectory
	blogs  cms.BlogDirectory
	log    logger.Logger
}

// NewReports creates Reports.
func NewReports(engine *Engine, users cms.UserDirectory, blogs cms.BlogDirectory, log logger.Logger) *Reports {
	return &Reports{engine: engine, users: users, blogs: blogs, log: log}
}

// Users returns page (1-based) of the user engagement ranking.
func (r *Reports) Users(ctx context.Context, w domain.Window, page, limit int) (UsersReport, error) {
	if page < 1 {
		page = 1
	}
	limit = clamp(limit, DefaultPageSize, MaxPageSize)

	result, err := r.engine.UserEngagement(ctx, w, storage.Page{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return UsersReport{}, err
	}

	if enrichErr := EnrichUsers(ctx, r.users, result.Users); enrichErr != nil {
		r.log.Warn("User enrichment failed", logger.Error(enrichErr))
	}

	return UsersReport{
		Users: result.Users,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: result.Total,
			Pages: (result.Total + int64(limit) - 1) / int64(limit),
		},
	}, nil
}

// Content returns popularity for contentType, which is "all" or a
// storage.Dimension.
func (r *Reports) Content(ctx context.Context, w domain.Window, contentType string) (ContentReport, error) {
	dims := storage.AllDimensions()
	if contentType != "" && contentType != ContentTypeAll {
		dim, err := storage.ParseDimension(contentType)
		if err != nil {
			return ContentReport{}, err
		}
		dims = []storage.Dimension{dim}
	}

	results := make([][]storage.ContentPopularity, len(dims))
	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range dims {
		g.Go(func() error {
			rows, err := r.engine.PopularContent(gctx, w, dim, MaxPopularContent)
			results[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ContentReport{}, err
	}

	var report ContentReport
	for i, dim := range dims {
		switch dim {
		case storage.DimensionParks:
			report.Parks = results[i]
		case storage.DimensionEvents:
			report.Events = results[i]
		case storage.DimensionBlogs:
			blogs, err := EnrichBlogs(ctx, r.blogs, results[i])
			if err != nil {
				r.log.Warn("Blog enrichment failed", logger.Error(err))
			}
			report.Blogs = blogs
		}
	}
	return report, nil
}

// IsBadRequest reports whether err was caused by caller input.
func IsBadRequest(err error) bool {
	return errors.Is(err, storage.ErrUnknownDimension) || errors.Is(err, domain.ErrInvalidPeriod)
}
