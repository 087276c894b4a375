package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/auth"
	"github.com/teamflow-dev/teamflow/internal/types"
)

const SignInPath = "/login"

// protectedPagePrefixes is the fixed list of browser-facing path prefixes
// that require a session. Anything else outside /api passes through.
var protectedPagePrefixes = []string{
	"/dashboard",
	"/projects",
	"/tasks",
	"/events",
	"/calendar",
	"/settings",
}

// publicAPIPaths are the /api endpoints reachable without a token.
var publicAPIPaths = map[string]bool{
	"/api/health":        true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
}

// RouteGuard is the request front door: it classifies the path, extracts a
// token from the cookie or Authorization header, verifies it, and either
// denies or forwards with the decoded identity on the context. Verification
// is a local computation, so the guard never blocks on I/O.
func RouteGuard(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		isAPI := path == "/api" || strings.HasPrefix(path, "/api/")

		if !isProtected(path, isAPI) {
			ctx.Next()
			return
		}

		tokenString := ExtractToken(ctx.Request)

		if tokenString == "" {
			deny(ctx, isAPI, "Authentication required")
			return
		}

		claims, err := tokens.Verify(tokenString)

		if err != nil {
			deny(ctx, isAPI, "Invalid or expired token")
			return
		}

		ctx.Set(types.ContextUserKey, types.AuthenticatedUser{
			ID:    claims.UserID,
			Name:  claims.Name,
			Email: claims.Email,
		})
		ctx.Next()
	}
}

func isProtected(path string, isAPI bool) bool {
	if isAPI {
		return !publicAPIPaths[path]
	}

	for _, prefix := range protectedPagePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	return false
}

// ExtractToken pulls the session token from the "token" cookie, falling
// back to an "Authorization: Bearer" header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")

	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)

	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

func deny(ctx *gin.Context, isAPI bool, message string) {
	if isAPI {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
		return
	}

	ctx.Redirect(http.StatusFound, SignInPath)
	ctx.Abort()
}
