package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/convsync/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// TokenQuery carries the token on websocket upgrades, where browsers cannot set headers
	TokenQuery = "token"
)

// TokenAuth guards the local API with a static bearer token. An empty token disables the check.
func TokenAuth(token string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if token == "" {
			c.Next(ctx)
			return
		}

		got, ok := requestToken(c)
		if !ok {
			response.Unauthorized(ctx, c, "token missing")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(ctx, c, "token invalid")
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

func requestToken(c *app.RequestContext) (string, bool) {
	authHeader := string(c.GetHeader(AuthorizationHeader))
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix), true
	}
	if authHeader == "" {
		if token := c.Query(TokenQuery); token != "" {
			return token, true
		}
	}
	return "", false
}
