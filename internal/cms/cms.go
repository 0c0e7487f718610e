// Package cms reads the site's user and blog records for report
// enrichment. The tables belong to the CMS; this service never writes them.
package cms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// UserProfile is the subset of a site user shown on reports.
type UserProfile struct {
	ID        string    `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Email     string    `db:"email"      json:"email"`
	Role      string    `db:"role"       json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BlogPostSummary is the subset of a blog post shown on reports.
type BlogPostSummary struct {
	ID          string     `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	Slug        string     `db:"slug"         json:"slug"`
	Category    string     `db:"category"     json:"category"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt"`
}

// UserDirectory looks up users by id. Unknown ids are absent from the result.
type UserDirectory interface {
	UsersByID(ctx context.Context, ids []string) (map[string]UserProfile, error)
}

// BlogDirectory looks up blog posts by id. Unknown ids are absent from the
// result.
type BlogDirectory interface {
	PostsByID(ctx context.Context, ids []string) (map[string]BlogPostSummary, error)
}

// PostgresDirectory reads the CMS users and blog_posts tables.
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory wraps db.
func NewPostgresDirectory(db *sqlx.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// UsersByID implements UserDirectory.
func (d *PostgresDirectory) UsersByID(ctx context.Context, ids []string) (map[string]UserProfile, error) {
	if len(ids) == 0 {
		return map[string]UserProfile{}, nil
	}

	query := `
		SELECT id, COALESCE(name, '') AS name, COALESCE(email, '') AS email,
			COALESCE(role, '') AS role, created_at
		FROM users
		WHERE id = ANY($1)
	`

	var rows []UserProfile
	if err := d.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	out := make(map[string]UserProfile, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// PostsByID implements BlogDirectory.
func (d *PostgresDirectory) PostsByID(ctx context.Context, ids []string) (map[string]BlogPostSummary, error) {
	if len(ids) == 0 {
		return map[string]BlogPostSummary{}, nil
	}

	query := `
		SELECT id, title, slug, COALESCE(category, '') AS category, published_at
		FROM blog_posts
		WHERE id = ANY($1)
	`

	var rows []BlogPostSummary
	if err := d.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("query blog posts: %w", err)
	}

	out := make(map[string]BlogPostSummary, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// StaticDirectory serves users and posts from memory. It backs the memory
// storage driver and tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]UserProfile
	posts map[string]BlogPostSummary
}

// NewStaticDirectory creates an empty StaticDirectory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users: make(map[string]UserProfile),
		posts: make(map[string]BlogPostSummary),
	}
}

// PutUser adds or replaces a user.
func (d *StaticDirectory) PutUser(u UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// PutPost adds or replaces a blog post.
func (d *StaticDirectory) PutPost(p BlogPostSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.posts[p.ID] = p
}

// UsersByID implements UserDirectory.
func (d *StaticDirectory) UsersByID(_ context.Context, ids []string) (map[string]UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]UserProfile, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// PostsByID implements BlogDirectory.
func (d *StaticDirectory) PostsByID(_ context.Context, ids []string) (map[string]BlogPostSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]BlogPostSummary, len(ids))
	for _, id := range ids {
		if p, ok := d.posts[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
