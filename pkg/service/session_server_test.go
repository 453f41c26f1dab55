package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/tj/assert"
	"github.com/theapemachine/sqlsession/pkg/config"
	"github.com/theapemachine/sqlsession/pkg/stores"
)

func newTestServer(t *testing.T, auth AuthChecker) (*SessionServer, *stores.SessionStore) {
	t.Helper()

	ctx := context.Background()

	handle, err := stores.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "sessions.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { handle.Close() })

	store, err := stores.NewSessionStore(ctx, handle)
	assert.NoError(t, err)

	return NewSessionServer(store, config.Server{CookieName: "SESSION"}, auth), store
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	assert.NoError(t, err)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(body, &out))

	return out
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SESSION" {
			return cookie
		}
	}

	return nil
}

func TestHandleRoot(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv.App(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestVisitsKeepsSessionAcrossRequests(t *testing.T) {
	srv, store := newTestServer(t, nil)

	resp := do(t, srv.App(), httptest.NewRequest(http.MethodGet, "/visits", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	first := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), first["visits"])

	cookie := sessionCookie(resp)
	assert.NotNil(t, cookie)
	assert.Equal(t, first["id"], cookie.Value)

	req := httptest.NewRequest(http.MethodGet, "/visits", nil)
	req.AddCookie(&http.Cookie{Name: "SESSION", Value: cookie.Value})

	second := decode[map[string]any](t, do(t, srv.App(), req))
	assert.Equal(t, float64(2), second["visits"])
	assert.Equal(t, first["id"], second["id"])

	count, err := store.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVisitsWithUnknownCookieStartsOver(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/visits", nil)
	req.AddCookie(&http.Cookie{Name: "SESSION", Value: "gone"})

	resp := do(t, srv.App(), req)
	body := decode[map[string]any](t, resp)

	assert.Equal(t, float64(1), body["visits"])
	assert.NotEqual(t, "gone", body["id"])
}

func TestSessionMiddlewareSkipsEmptySessions(t *testing.T) {
	srv, store := newTestServer(t, nil)

	srv.App().Get("/anonymous", SessionMiddleware(store, "SESSION"), func(ctx fiber.Ctx) error {
		return ctx.SendString(SessionFrom(ctx).ID())
	})

	srv.App().Get("/logout", SessionMiddleware(store, "SESSION"), func(ctx fiber.Ctx) error {
		Invalidate(ctx)
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	resp := do(t, srv.App(), httptest.NewRequest(http.MethodGet, "/anonymous", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	count, err := store.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	cookie := sessionCookie(do(t, srv.App(), httptest.NewRequest(http.MethodGet, "/visits", nil)))
	assert.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "SESSION", Value: cookie.Value})
	assert.Equal(t, http.StatusNoContent, do(t, srv.App(), req).StatusCode)

	count, err = store.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAdminAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	app := srv.App()

	resp := do(t, app, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[SessionView](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1800, created.MaxInactiveInterval)

	path := "/sessions/" + created.ID

	resp = do(t, app, jsonRequest(http.MethodPut, path+"/attributes/user", `{"value":"ada"}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", decode[SessionView](t, resp).Attributes["user"])

	resp = do(t, app, jsonRequest(http.MethodPut, path+"/attributes/roles", `{"value":["admin","dev"]}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := decode[SessionView](t, resp)
	assert.Equal(t, "ada", fetched.Attributes["user"])
	assert.Equal(t, []any{"admin", "dev"}, fetched.Attributes["roles"])

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, path+"/attributes/user", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	fetched = decode[SessionView](t, do(t, app, httptest.NewRequest(http.MethodGet, path, nil)))
	_, ok := fetched.Attributes["user"]
	assert.False(t, ok)

	counted := decode[map[string]any](t, do(t, app, httptest.NewRequest(http.MethodGet, "/sessions", nil)))
	assert.Equal(t, float64(1), counted["count"])

	swept := decode[map[string]any](t, do(t, app, httptest.NewRequest(http.MethodPost, "/sessions/sweep", nil)))
	assert.Equal(t, float64(0), swept["removed"])

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, app, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAdminAPIErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	app := srv.App()

	resp := do(t, app, jsonRequest(http.MethodPut, "/sessions/missing/attributes/user", `{"value":"ada"}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	created := decode[SessionView](t, do(t, app, httptest.NewRequest(http.MethodPost, "/sessions", nil)))

	resp = do(t, app, jsonRequest(http.MethodPut, "/sessions/"+created.ID+"/attributes/user", `{"value":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminAPIAuth(t *testing.T) {
	srv, _ := newTestServer(t, APIKeyAuth{Key: "secret"})

	tests := []struct {
		name       string
		apiKey     string
		wantStatus int
	}{
		{name: "valid api key", apiKey: "secret", wantStatus: http.StatusOK},
		{name: "invalid api key", apiKey: "wrong", wantStatus: http.StatusUnauthorized},
		{name: "missing api key", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}

			assert.Equal(t, tt.wantStatus, do(t, srv.App(), req).StatusCode)
		})
	}

	resp := do(t, srv.App(), httptest.NewRequest(http.MethodGet, "/visits", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the session middleware is not behind auth")
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, BearerAuth{Token: "token"})

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer token")
	assert.Equal(t, http.StatusOK, do(t, srv.App(), req).StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Basic token")
	assert.Equal(t, http.StatusUnauthorized, do(t, srv.App(), req).StatusCode)
}
