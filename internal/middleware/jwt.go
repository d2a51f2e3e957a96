package middleware

import (
	"net/http"

	"docarchive/internal/common"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// ActorClaims are the claims issued by the archive's identity service.
type ActorClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// NewJWTConfig validates HMAC-signed bearer tokens carrying ActorClaims.
func NewJWTConfig(jwtSecret string) echojwt.Config {
	return echojwt.Config{
		SigningKey: []byte(jwtSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(ActorClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		},
	}
}

// ActorFromToken copies the user id of a validated token into the request
// context so that ledger entries name the acting user. It must run after
// echojwt.WithConfig.
func ActorFromToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}
			claims, ok := token.Claims.(*ActorClaims)
			if !ok || claims.UserID <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing user_id in token")
			}

			ctx := common.WithUserID(c.Request().Context(), claims.UserID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
