package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/trailverse/analytics/internal/cms"
	"github.com/trailverse/analytics/internal/storage"
)

// PopularBlog is a blog popularity row with post details when the CMS has
// the post.
type PopularBlog struct {
	storage.ContentPopularity
	Title       *string    `json:"title"`
	Slug        *string    `json:"slug"`
	Category    *string    `json:"category"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// EnrichUsers fills profile fields from dir. Users the directory does not
// know keep nil fields.
func EnrichUsers(ctx context.Context, dir cms.UserDirectory, users []EngagedUser) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, 0, len(users))
	for i := range users {
		ids = append(ids, users[i].UserID)
	}

	profiles, err := dir.UsersByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("look up users: %w", err)
	}

	for i := range users {
		p, ok := profiles[users[i].UserID]
		if !ok {
			continue
		}
		users[i].Name = &p.Name
		users[i].Email = &p.Email
		users[i].Role = &p.Role
		users[i].CreatedAt = &p.CreatedAt
	}
	return nil
}

// EnrichBlogs attaches post details from dir to blog popularity rows.
func EnrichBlogs(ctx context.Context, dir cms.BlogDirectory, rows []storage.ContentPopularity) ([]PopularBlog, error) {
	out := make([]PopularBlog, 0, len(rows))
	for _, r := range rows {
		out = append(out, PopularBlog{ContentPopularity: r})
	}
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ContentID)
	}

	posts, err := dir.PostsByID(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("look up blog posts: %w", err)
	}

	for i := range out {
		p, ok := posts[out[i].ContentID]
		if !ok {
			continue
		}
		out[i].Title = &p.Title
		out[i].Slug = &p.Slug
		out[i].Category = &p.Category
		out[i].PublishedAt = p.PublishedAt
	}
	return out, nil
}
