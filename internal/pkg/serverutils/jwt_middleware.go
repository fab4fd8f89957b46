package serverutils

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// NewJwtMiddleware validates HS256 bearer tokens signed with secret and
// stores the "sub" (or legacy "user_id") claim in ctx.Locals("user_id").
// An empty secret disables authentication.
func NewJwtMiddleware(secret string) fiber.Handler {
	if secret == "" {
		return func(ctx *fiber.Ctx) error {
			return ctx.Next()
		}
	}

	key := []byte(secret)
	return func(ctx *fiber.Ctx) error {
		// Browsers cannot set headers on websocket handshakes, so a
		// "token" query parameter is accepted as well.
		tokenStr := ctx.Query("token")
		if authHeader := ctx.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		subject, _ := claims.GetSubject()
		if subject == "" {
			subject, _ = claims["user_id"].(string)
		}
		ctx.Locals("user_id", subject)
		return ctx.Next()
	}
}
