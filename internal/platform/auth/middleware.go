package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chartd/chartd/internal/platform/apperror"
)

// Claims is the token payload. Subject carries the actor id; Capabilities is
// the closed grant list issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Capabilities []string `json:"capabilities"`
}

type Config struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// Middleware parses the bearer token, validates signature, issuer and
// audience, and stores the Actor on the request context. Missing or invalid
// credentials stop the request with 401 before any domain logic runs.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return apperror.Unauthenticated("invalid token")
			}

			actorID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return apperror.Unauthenticated("token subject is not a valid actor id")
			}

			actor := &Actor{ID: actorID, Capabilities: claims.Capabilities}
			req := c.Request()
			c.SetRequest(req.WithContext(WithActor(req.Context(), actor)))
			return next(c)
		}
	}
}

// RequireCapability gates a route on one exact capability. 401 when there is
// no actor, 403 when the capability is absent.
func RequireCapability(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFromContext(c.Request().Context())
			if err != nil {
				return err
			}
			if !actor.Can(capability) {
				return apperror.Unauthorized(capability)
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", apperror.Unauthenticated("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperror.Unauthenticated("Authorization header is not a bearer token")
	}
	return strings.TrimSpace(parts[1]), nil
}
