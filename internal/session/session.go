// Package session assigns analytics session ids to browser requests. A
// cookie holds an opaque key; the Store maps that key to the session id and
// expires it after a period of inactivity.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trailverse/analytics/infrastructure/logger"
)

// Defaults for Config.
const (
	DefaultCookieName = "pa_sid"
	DefaultTTL        = 30 * time.Minute

	contextKey = "analytics_session_id"
)

// Store maps cookie keys to session ids.
type Store interface {
	// Get returns the session id for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetIfAbsent stores sessionID under key unless a value is already
	// present, and returns whichever value is stored afterwards.
	SetIfAbsent(ctx context.Context, key, sessionID string, ttl time.Duration) (string, error)
	// Touch extends the expiry of key.
	Touch(ctx context.Context, key string, ttl time.Duration) error
}

// Config configures the Identifier.
type Config struct {
	CookieName   string        `env:"ANALYTICS_SESSION_COOKIE" yaml:"cookie_name"`
	TTL          time.Duration `env:"ANALYTICS_SESSION_TTL"    yaml:"ttl"`
	SecureCookie bool          `env:"ANALYTICS_SESSION_SECURE" yaml:"secure_cookie"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
}

// Identifier resolves the session id for a request.
type Identifier struct {
	store Store
	cfg   Config
	log   logger.Logger
}

// NewIdentifier creates an Identifier backed by store.
func NewIdentifier(store Store, cfg Config, log logger.Logger) *Identifier {
	cfg.SetDefaults()
	return &Identifier{store: store, cfg: cfg, log: log}
}

// Resolve returns the session id for the request, minting and persisting a
// new one when needed. It never fails: store errors are logged and a fresh
// id is returned. The result is cached on the gin context.
func (i *Identifier) Resolve(c *gin.Context) string {
	if id := c.GetString(contextKey); id != "" {
		return id
	}

	id := i.resolve(c)
	c.Set(contextKey, id)
	return id
}

func (i *Identifier) resolve(c *gin.Context) string {
	ctx := c.Request.Context()

	key, cookieErr := c.Cookie(i.cfg.CookieName)
	if cookieErr == nil && key != "" {
		id, found, err := i.store.Get(ctx, key)
		if err != nil {
			i.log.Warn("Session lookup failed, using a fresh session id",
				logger.Error(err),
			)
			return uuid.NewString()
		}
		if found {
			if touchErr := i.store.Touch(ctx, key, i.cfg.TTL); touchErr != nil {
				i.log.Warn("Session refresh failed", logger.Error(touchErr))
			}
			i.setCookie(c, key)
			return id
		}
	} else {
		key = uuid.NewString()
	}

	fresh := uuid.NewString()
	id, err := i.store.SetIfAbsent(ctx, key, fresh, i.cfg.TTL)
	if err != nil {
		i.log.Warn("Session store failed, using an unpersisted session id",
			logger.Error(err),
		)
		return fresh
	}

	i.setCookie(c, key)
	return id
}

func (i *Identifier) setCookie(c *gin.Context, key string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(i.cfg.CookieName, key, int(i.cfg.TTL.Seconds()), "/", "", i.cfg.SecureCookie, true)
}
