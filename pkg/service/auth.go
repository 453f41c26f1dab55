package service

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

/*
AuthChecker validates an incoming admin request. Returning false answers the
request with 401.
*/
type AuthChecker interface {
	Authorize(ctx fiber.Ctx) bool
}

// APIKeyAuth checks for header "X-API-Key: <key>".
type APIKeyAuth struct{ Key string }

func (auth APIKeyAuth) Authorize(ctx fiber.Ctx) bool {
	return equal(ctx.Get("X-API-Key"), auth.Key)
}

// BearerAuth checks for header "Authorization: Bearer <token>".
type BearerAuth struct{ Token string }

func (auth BearerAuth) Authorize(ctx fiber.Ctx) bool {
	header := ctx.Get(fiber.HeaderAuthorization)

	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return false
	}

	return equal(strings.TrimSpace(header[7:]), auth.Token)
}

/*
AuthMiddleware rejects requests the checker denies. A nil checker lets
everything through.
*/
func AuthMiddleware(checker AuthChecker) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		if checker != nil && !checker.Authorize(ctx) {
			return ctx.SendStatus(fiber.StatusUnauthorized)
		}

		return ctx.Next()
	}
}

func equal(given, expected string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}
