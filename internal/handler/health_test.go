package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/tasklist/internal/handler"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		ping error
		code int
		body string
	}{
		{"ok", nil, http.StatusOK, `{"status":"ok"}`},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, `{"status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(pingerFunc(func(context.Context) error { return tt.ping }), testLogger())

			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.code, rr.Code)
			assert.JSONEq(t, tt.body, rr.Body.String())
		})
	}
}
