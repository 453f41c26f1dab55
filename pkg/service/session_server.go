package service

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/sqlsession/pkg/codec"
	"github.com/theapemachine/sqlsession/pkg/config"
	"github.com/theapemachine/sqlsession/pkg/errors"
	"github.com/theapemachine/sqlsession/pkg/service/sse"
	"github.com/theapemachine/sqlsession/pkg/session"
	"github.com/theapemachine/sqlsession/pkg/stores"
)

func init() {
	// Attribute values posted as JSON objects and arrays.
	codec.RegisterGob(map[string]any{}, []any{})
}

/*
SessionServer exposes a SessionStore over HTTP: an admin API under /sessions
and a cookie-bound demo route at /visits. With an event broker it also
streams destroyed sessions at /events.
*/
type SessionServer struct {
	app    *fiber.App
	store  *stores.SessionStore
	config config.Server
	auth   AuthChecker
	events *sse.Broker
}

type ServerOption func(*SessionServer)

/*
WithEvents serves broker at /events. The broker only sees sessions destroyed
by a store it was registered on with stores.WithDestroyedListener.
*/
func WithEvents(broker *sse.Broker) ServerOption {
	return func(srv *SessionServer) {
		srv.events = broker
	}
}

/*
SessionView is the JSON shape of a session.
*/
type SessionView struct {
	ID                  string         `json:"id"`
	CreationTime        int64          `json:"creationTime"`
	LastAccessedTime    int64          `json:"lastAccessedTime"`
	MaxInactiveInterval int            `json:"maxInactiveInterval"`
	Attributes          map[string]any `json:"attributes"`
}

type attributeRequest struct {
	Value any `json:"value"`
}

func NewSessionView(record *session.Record) SessionView {
	view := SessionView{
		ID:                  record.ID(),
		CreationTime:        record.CreationTime(),
		LastAccessedTime:    record.LastAccessedTime(),
		MaxInactiveInterval: record.MaxInactiveInterval(),
		Attributes:          make(map[string]any),
	}

	for _, name := range record.AttributeNames() {
		view.Attributes[name], _ = record.Attribute(name)
	}

	return view
}

/*
NewSessionServer builds the fiber app. When auth is nil the admin API is
open.
*/
func NewSessionServer(
	store *stores.SessionStore, server config.Server, auth AuthChecker, options ...ServerOption,
) *SessionServer {
	srv := &SessionServer{
		app: fiber.New(fiber.Config{
			AppName:      "sqlsession",
			ServerHeader: "SQLSession-Server",
			JSONEncoder:  json.Marshal,
			JSONDecoder:  json.Unmarshal,
			ErrorHandler: handleError,
		}),
		store:  store,
		config: server,
		auth:   auth,
	}

	for _, option := range options {
		option(srv)
	}

	srv.routes()
	return srv
}

func (srv *SessionServer) routes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip the health check and the long-lived event stream.
		Next: func(ctx fiber.Ctx) bool {
			return ctx.Path() == "/" || ctx.Path() == "/events"
		},
	}))

	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/metrics", srv.handleMetrics)
	srv.app.Get("/visits", SessionMiddleware(srv.store, srv.cookieName()), srv.handleVisits)

	if srv.events != nil {
		srv.app.Get("/events", AuthMiddleware(srv.auth), srv.handleEvents)
	}

	admin := srv.app.Group("/sessions", AuthMiddleware(srv.auth))
	admin.Get("/", srv.handleCount)
	admin.Post("/", srv.handleCreate)
	admin.Post("/sweep", srv.handleSweep)
	admin.Get("/:id", srv.handleGet)
	admin.Delete("/:id", srv.handleDelete)
	admin.Put("/:id/attributes/:name", srv.handleSetAttribute)
	admin.Delete("/:id/attributes/:name", srv.handleRemoveAttribute)
}

func (srv *SessionServer) App() *fiber.App {
	return srv.app
}

func (srv *SessionServer) Start() error {
	address := net.JoinHostPort(srv.config.Host, strconv.Itoa(srv.config.Port))
	log.Info("serving sessions", "address", address)

	return srv.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *SessionServer) Shutdown(ctx context.Context) error {
	return srv.app.ShutdownWithContext(ctx)
}

func (srv *SessionServer) cookieName() string {
	if srv.config.CookieName == "" {
		return "SESSION"
	}

	return srv.config.CookieName
}

func (srv *SessionServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *SessionServer) handleMetrics(ctx fiber.Ctx) error {
	return ctx.JSON(srv.store.Metrics().GetMetrics())
}

func (srv *SessionServer) handleEvents(ctx fiber.Ctx) error {
	return fiberadaptor.HTTPHandler(http.HandlerFunc(srv.events.Subscribe))(ctx)
}

func (srv *SessionServer) handleVisits(ctx fiber.Ctx) error {
	record := SessionFrom(ctx)

	visits := 0
	value, _ := record.Attribute("visits")

	switch count := value.(type) {
	case int:
		visits = count
	case int64:
		visits = int(count)
	case float64:
		visits = int(count)
	}

	visits++
	record.SetAttribute("visits", visits)

	return ctx.JSON(fiber.Map{"id": record.ID(), "visits": visits})
}

func (srv *SessionServer) handleCount(ctx fiber.Ctx) error {
	count, err := srv.store.Count(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"count": count})
}

func (srv *SessionServer) handleCreate(ctx fiber.Ctx) error {
	record := srv.store.CreateSession()

	if err := srv.store.Save(ctx.Context(), record); err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(NewSessionView(record))
}

func (srv *SessionServer) handleSweep(ctx fiber.Ctx) error {
	removed, err := srv.store.CleanupExpiredSessions(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"removed": removed})
}

// handleGet neither touches nor saves, so reading a session never extends
// its lifetime and shows the stored access time.
func (srv *SessionServer) handleGet(ctx fiber.Ctx) error {
	record, found, err := srv.store.Peek(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	if !found {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return ctx.JSON(NewSessionView(record))
}

func (srv *SessionServer) handleDelete(ctx fiber.Ctx) error {
	if err := srv.store.Delete(ctx.Context(), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *SessionServer) handleSetAttribute(ctx fiber.Ctx) error {
	var request attributeRequest

	if err := ctx.Bind().Body(&request); err != nil {
		return errors.ErrInvalidArgument.WithMessagef("invalid attribute body").Wrap(err)
	}

	record, err := srv.load(ctx)
	if err != nil {
		return err
	}

	record.SetAttribute(ctx.Params("name"), request.Value)

	if err = srv.store.Save(ctx.Context(), record); err != nil {
		return err
	}

	return ctx.JSON(NewSessionView(record))
}

func (srv *SessionServer) handleRemoveAttribute(ctx fiber.Ctx) error {
	record, err := srv.load(ctx)
	if err != nil {
		return err
	}

	record.RemoveAttribute(ctx.Params("name"))

	if err = srv.store.Save(ctx.Context(), record); err != nil {
		return err
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (srv *SessionServer) load(ctx fiber.Ctx) (*session.Record, error) {
	record, found, err := srv.store.GetSession(ctx.Context(), ctx.Params("id"))

	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return record, nil
}

func handleError(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var fiberErr *fiber.Error

	switch {
	case stderrors.As(err, &fiberErr):
		status = fiberErr.Code
	case stderrors.Is(err, errors.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	case stderrors.Is(err, errors.ErrEncodingFailure):
		status = fiber.StatusUnprocessableEntity
	case stderrors.Is(err, errors.ErrBackendFailure):
		status = fiber.StatusServiceUnavailable
	}

	if status >= fiber.StatusInternalServerError {
		log.Error("request failed", "path", ctx.Path(), "status", status, "error", err)
	}

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
