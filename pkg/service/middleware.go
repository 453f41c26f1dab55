package service

import (
	stderrors "errors"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/theapemachine/sqlsession/pkg/errors"
	"github.com/theapemachine/sqlsession/pkg/session"
	"github.com/theapemachine/sqlsession/pkg/stores"
)

type sessionLocal struct{}

type invalidatedLocal struct{}

/*
SessionMiddleware binds one session to every request through a cookie. The
session named by the cookie is loaded before the handler runs and saved
after it returns, so handlers only read and mutate it via SessionFrom.
Requests without a usable cookie get a fresh session, which is only stored
once a handler puts an attribute in it.
*/
func SessionMiddleware(repository stores.SessionRepository, cookieName string) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		record, isNew := loadOrCreate(ctx, repository, cookieName)
		ctx.Locals(sessionLocal{}, record)

		handlerErr := ctx.Next()

		if invalidated, _ := ctx.Locals(invalidatedLocal{}).(bool); invalidated {
			if !isNew {
				if err := repository.Delete(ctx.Context(), record.ID()); err != nil {
					log.Error("failed to invalidate session", "session_id", record.ID(), "error", err)
					return stderrors.Join(handlerErr, err)
				}
			}

			ctx.ClearCookie(cookieName)
			return handlerErr
		}

		if isNew && len(record.AttributeNames()) == 0 {
			return handlerErr
		}

		if err := errors.RetryWithBackoff(ctx.Context(), errors.BackendRetryConfig(), func() error {
			return repository.Save(ctx.Context(), record)
		}); err != nil {
			log.Error("failed to save request session", "session_id", record.ID(), "error", err)
			return stderrors.Join(handlerErr, err)
		}

		ctx.Cookie(&fiber.Cookie{
			Name:     cookieName,
			Value:    record.ID(),
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		return handlerErr
	}
}

func loadOrCreate(
	ctx fiber.Ctx, repository stores.SessionRepository, cookieName string,
) (*session.Record, bool) {
	id := ctx.Cookies(cookieName)

	if id == "" {
		return repository.CreateSession(), true
	}

	record, found, err := repository.GetSession(ctx.Context(), id)

	if err != nil {
		log.Warn("discarding unreadable session", "session_id", id, "error", err)
		return repository.CreateSession(), true
	}

	if !found {
		return repository.CreateSession(), true
	}

	return record, false
}

/*
SessionFrom returns the session SessionMiddleware bound to the request, or
nil outside the middleware.
*/
func SessionFrom(ctx fiber.Ctx) *session.Record {
	record, _ := ctx.Locals(sessionLocal{}).(*session.Record)
	return record
}

/*
Invalidate deletes the request's session once the handler returns and clears
its cookie.
*/
func Invalidate(ctx fiber.Ctx) {
	ctx.Locals(invalidatedLocal{}, true)
}
