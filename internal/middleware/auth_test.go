package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/auth"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/utils"
)

func guardedEngine(t *testing.T, tokens *auth.TokenManager) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RouteGuard(tokens))

	whoami := func(ctx *gin.Context) {
		user, err := utils.GetCurrentUser(ctx)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "no identity in context"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"email": user.Email})
	}

	r.GET("/api/tasks", whoami)
	r.GET("/api/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/dashboard", whoami)
	r.GET("/about", func(ctx *gin.Context) { ctx.String(http.StatusOK, "public") })

	return r
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	return tokens
}

func issue(t *testing.T, tokens *auth.TokenManager) string {
	t.Helper()

	user := &models.User{Name: "Ann", Email: "ann@x.com"}
	user.ID = 7

	token, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	return token
}

func TestGuardRejectsAPIWithoutToken(t *testing.T) {
	r := guardedEngine(t, newTokens(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}

	if body["error"] == "" {
		t.Error("expected a structured error body")
	}
}

func TestGuardRedirectsPageWithoutToken(t *testing.T) {
	r := guardedEngine(t, newTokens(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}

	if location := w.Header().Get("Location"); location != SignInPath {
		t.Errorf("Location = %q, want %q", location, SignInPath)
	}
}

func TestGuardAcceptsBearerHeader(t *testing.T) {
	tokens := newTokens(t)
	r := guardedEngine(t, tokens)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)

	if body["email"] != "ann@x.com" {
		t.Errorf("identity not forwarded: %v", body)
	}
}

func TestGuardAcceptsCookie(t *testing.T) {
	tokens := newTokens(t)
	r := guardedEngine(t, tokens)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: issue(t, tokens)})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
}

func TestGuardRejectsExpiredToken(t *testing.T) {
	tokens := newTokens(t)

	expired, err := auth.NewTokenManager("test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	r := guardedEngine(t, tokens)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, expired))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGuardRejectsTamperedToken(t *testing.T) {
	tokens := newTokens(t)
	r := guardedEngine(t, tokens)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, tokens)+"x")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGuardPassesPublicPaths(t *testing.T) {
	r := guardedEngine(t, newTokens(t))

	for _, path := range []string{"/api/health", "/about"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestGuardProtectsPagePrefixesOnly(t *testing.T) {
	r := guardedEngine(t, newTokens(t))

	// "/dashboards-of-others" is not under the /dashboard prefix.
	r.GET("/dashboards-of-others", func(ctx *gin.Context) { ctx.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboards-of-others", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
