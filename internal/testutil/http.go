// internal/testutil/http.go
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/mlanders/datahub/internal/app/system/auth"
	"github.com/mlanders/datahub/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// SessionFor builds a session for the given account and memberships,
// bypassing the auth middleware.
func SessionFor(a models.Account, memberships ...models.Membership) *models.Session {
	return &models.Session{
		IdentityID:  "ident-" + a.AccountID,
		Account:     &a,
		Memberships: memberships,
	}
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a session in context.
func NewAuthenticatedRequest(method, target string, s *models.Session) *http.Request {
	return auth.WithSession(httptest.NewRequest(method, target, nil), s)
}

// NewJSONRequest creates an HTTP request carrying a JSON body. A nil session
// leaves the request anonymous.
func NewJSONRequest(method, target string, body any, s *models.Session) *http.Request {
	buf, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(buf))
	r.Header.Set("Content-Type", "application/json")
	if s != nil {
		r = auth.WithSession(r, s)
	}
	return r
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}
