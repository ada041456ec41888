package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/handler"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTaskService implements handler.TaskService with testify/mock.
type MockTaskService struct{ mock.Mock }

func (m *MockTaskService) List(ctx context.Context, callerID int64) ([]model.TaskView, error) {
	args := m.Called(ctx, callerID)
	views, _ := args.Get(0).([]model.TaskView)
	return views, args.Error(1)
}

func (m *MockTaskService) Get(ctx context.Context, taskID, callerID int64) (*model.TaskView, error) {
	args := m.Called(ctx, taskID, callerID)
	view, _ := args.Get(0).(*model.TaskView)
	return view, args.Error(1)
}

func (m *MockTaskService) Create(ctx context.Context, title string, callerID int64) (*model.TaskView, error) {
	args := m.Called(ctx, title, callerID)
	view, _ := args.Get(0).(*model.TaskView)
	return view, args.Error(1)
}

func (m *MockTaskService) Update(ctx context.Context, taskID int64, title string, completed bool, callerID int64) error {
	return m.Called(ctx, taskID, title, completed, callerID).Error(0)
}

func (m *MockTaskService) Delete(ctx context.Context, taskID, callerID int64) error {
	return m.Called(ctx, taskID, callerID).Error(0)
}

// MockAuthenticator implements handler.Authenticator.
type MockAuthenticator struct{ mock.Mock }

func (m *MockAuthenticator) Register(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*service.LoginResult)
	return res, args.Error(1)
}

func (m *MockAuthenticator) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*service.LoginResult, error) {
	args := m.Called(ctx, gh)
	res, _ := args.Get(0).(*service.LoginResult)
	return res, args.Error(1)
}

// MockOAuth implements handler.OAuthProvider.
type MockOAuth struct{ mock.Mock }

func (m *MockOAuth) AuthURL(state string) string {
	return m.Called(state).String(0)
}

func (m *MockOAuth) Exchange(ctx context.Context, code string) (*auth.GitHubUser, error) {
	args := m.Called(ctx, code)
	u, _ := args.Get(0).(*auth.GitHubUser)
	return u, args.Error(1)
}

// asUser stands in for auth.RequireAuth: it marks every request as coming
// from userID.
func asUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithSubject(r.Context(), auth.Subject{UserID: userID, Email: "ada@example.com"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// taskRouter mounts h the way the server does. A userID of 0 leaves the
// subject out of the context.
func taskRouter(h *handler.TaskHandler, userID int64) http.Handler {
	r := chi.NewRouter()
	if userID > 0 {
		r.Use(asUser(userID))
	}
	r.Get("/api/tasks", h.HandleList)
	r.Post("/api/tasks", h.HandleCreate)
	r.Get("/api/tasks/{id}", h.HandleGet)
	r.Put("/api/tasks/{id}", h.HandleUpdate)
	r.Delete("/api/tasks/{id}", h.HandleDelete)
	return r
}
