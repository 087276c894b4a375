package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/teamflow-dev/teamflow/db"
	"github.com/teamflow-dev/teamflow/internal/auth"
	"github.com/teamflow-dev/teamflow/internal/realtime"
	"github.com/teamflow-dev/teamflow/internal/router"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type env struct {
	t      *testing.T
	conn   *gorm.DB
	tokens *auth.TokenManager
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	return &env{
		t:      t,
		conn:   conn,
		tokens: tokens,
		router: router.New(conn, tokens, realtime.NewHub()),
	}
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

type authPayload struct {
	User struct {
		ID    uint   `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Token string `json:"token"`
}

// register creates an account through the API and returns its token and ID.
func (e *env) register(email, name string) (string, uint) {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "Secret123",
		"fullName": name,
	})

	if w.Code != http.StatusCreated {
		e.t.Fatalf("register %s = %d: %s", email, w.Code, w.Body.String())
	}

	var resp authPayload
	decode(e.t, w, &resp)

	return resp.Token, resp.User.ID
}

func (e *env) createWorkspace(token, name string) uint {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/workspaces", token, map[string]string{"name": name})

	if w.Code != http.StatusCreated {
		e.t.Fatalf("create workspace = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID uint `json:"id"`
	}
	decode(e.t, w, &resp)

	return resp.ID
}

func (e *env) createProject(token string, workspaceID uint, name string) uint {
	e.t.Helper()

	path := fmt.Sprintf("/api/workspaces/%d/projects", workspaceID)
	w := e.do(http.MethodPost, path, token, map[string]string{"name": name})

	if w.Code != http.StatusCreated {
		e.t.Fatalf("create project = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID uint `json:"id"`
	}
	decode(e.t, w, &resp)

	return resp.ID
}

type taskPayload struct {
	ID           uint   `json:"id"`
	ProjectID    uint   `json:"project_id"`
	ParentTaskID *uint  `json:"parent_task_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	Position     int    `json:"position"`
}

func (e *env) createTask(token string, projectID uint, title string) taskPayload {
	e.t.Helper()

	path := fmt.Sprintf("/api/projects/%d/tasks", projectID)
	w := e.do(http.MethodPost, path, token, map[string]string{"title": title})

	if w.Code != http.StatusCreated {
		e.t.Fatalf("create task = %d: %s", w.Code, w.Body.String())
	}

	var resp taskPayload
	decode(e.t, w, &resp)

	return resp
}

func (e *env) listTasks(token string, projectID uint) []taskPayload {
	e.t.Helper()

	path := fmt.Sprintf("/api/projects/%d/tasks", projectID)
	w := e.do(http.MethodGet, path, token, nil)

	if w.Code != http.StatusOK {
		e.t.Fatalf("list tasks = %d: %s", w.Code, w.Body.String())
	}

	var resp []taskPayload
	decode(e.t, w, &resp)

	return resp
}

// addMember puts an existing account into the workspace with the role.
func (e *env) addMember(token string, workspaceID uint, email, role string) {
	e.t.Helper()

	path := fmt.Sprintf("/api/workspaces/%d/members", workspaceID)
	w := e.do(http.MethodPost, path, token, map[string]string{"email": email, "role": role})

	if w.Code != http.StatusCreated {
		e.t.Fatalf("add member %s = %d: %s", email, w.Code, w.Body.String())
	}
}
