package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}

func (failingStore) SetIfAbsent(context.Context, string, string, time.Duration) (string, error) {
	return "", errStoreDown
}

func (failingStore) Touch(context.Context, string, time.Duration) error {
	return errStoreDown
}

func newSessionRouter(t *testing.T, store session.Store) *gin.Engine {
	t.Helper()

	ident := session.NewIdentifier(store, session.Config{}, logger.NewNop())
	router := gin.New()
	router.GET("/whoami", func(c *gin.Context) {
		first := ident.Resolve(c)
		second := ident.Resolve(c)
		if first != second {
			c.String(http.StatusInternalServerError, "unstable")
			return
		}
		c.String(http.StatusOK, first)
	})
	return router
}

func doRequest(t *testing.T, router *gin.Engine, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req, reqErr := http.NewRequestWithContext(t.Context(), http.MethodGet, "/whoami", http.NoBody)
	require.NoError(t, reqErr)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdentifier_StableAcrossRequestsWithCookie(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(t, session.NewMemoryStore())

	first := doRequest(t, router)
	require.Equal(t, http.StatusOK, first.Code)
	require.NotEmpty(t, first.Body.String())

	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	second := doRequest(t, router, cookies[0])
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestIdentifier_NewVisitorsGetDistinctSessions(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(t, session.NewMemoryStore())

	a := doRequest(t, router)
	b := doRequest(t, router)

	assert.NotEqual(t, a.Body.String(), b.Body.String())
}

func TestIdentifier_UnknownCookieKeyIsReused(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(t, session.NewMemoryStore())
	stale := &http.Cookie{Name: session.DefaultCookieName, Value: "key-from-yesterday"}

	first := doRequest(t, router, stale)
	second := doRequest(t, router, stale)

	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestIdentifier_StoreFailureStillYieldsSession(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(t, failingStore{})

	w := doRequest(t, router, &http.Cookie{Name: session.DefaultCookieName, Value: "k"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())

	fresh := doRequest(t, router)
	require.Equal(t, http.StatusOK, fresh.Code)
	assert.NotEmpty(t, fresh.Body.String())
	assert.Empty(t, fresh.Result().Cookies())
}
