package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Symposium/auth"
	"Symposium/model"
	"Symposium/notify"
	"Symposium/repo"
	"Symposium/service"
)

type stubDispatcher struct {
	err error
}

func (d stubDispatcher) Dispatch(context.Context, model.RegistrationForm) (model.Delivery, error) {
	if d.err != nil {
		return model.Delivery{Error: d.err.Error()}, d.err
	}
	return model.Delivery{RegistrantNotified: true, AdminNotified: true}, nil
}

const registrationBody = `{
	"name": "Asha Rao",
	"email": "asha@college.edu",
	"phone": "9876543210",
	"college": "Adithya Institute of Technology",
	"department": "Computer Science & Engineering",
	"year": "3rd Year",
	"event": "24-Hour National Hackathon"
}`

type testAPI struct {
	handler http.Handler
	store   *repo.SQLiteStore
	issuer  *auth.SessionIssuer
}

func newTestAPI(t *testing.T, d service.Dispatcher) testAPI {
	t.Helper()
	store, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	issuer, err := auth.NewSessionIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	api := NewAPI(service.NewRegistrar(d, store), auth.NewBcryptVerifier("admin@symposium.test", hash), issuer, []string{"*"})
	return testAPI{handler: api.Handler(), store: store, issuer: issuer}
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var out apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegisterEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		dispatcher stubDispatcher
		body       string
		status     int
		message    string
		success    bool
	}{
		{"accepted", stubDispatcher{}, registrationBody, http.StatusOK, service.MessageSent, true},
		{"required fields only", stubDispatcher{}, `{"name":"Asha Rao","email":"asha@college.edu","phone":"9876543210","event":"Paper Presentation"}`, http.StatusOK, service.MessageSent, true},
		{"unknown department", stubDispatcher{}, strings.Replace(registrationBody, "Computer Science & Engineering", "Astrology", 1), http.StatusBadRequest, "Invalid registration: Please select your department.", false},
		{"missing fields", stubDispatcher{}, `{"name":"Asha Rao"}`, http.StatusBadRequest, service.MessageMissingFields, false},
		{"malformed body", stubDispatcher{}, `{"name":`, http.StatusBadRequest, "Invalid request body.", false},
		{"invalid phone", stubDispatcher{}, strings.Replace(registrationBody, "9876543210", "12345", 1), http.StatusBadRequest, "Invalid registration: Enter a valid 10-digit Indian mobile number.", false},
		{"dispatch failure", stubDispatcher{err: &notify.DispatchError{AdminErr: errors.New("smtp down")}}, registrationBody, http.StatusInternalServerError, service.MessageDispatchFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, tt.dispatcher)
			rec := do(t, api.handler, http.MethodPost, "/api/register", tt.body, "")
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			out := decodeResponse(t, rec)
			if out.Success != tt.success || out.Message != tt.message {
				t.Fatalf("unexpected response %+v", out)
			}
		})
	}
}

func TestRegisterWrongMethod(t *testing.T) {
	api := newTestAPI(t, stubDispatcher{})
	rec := do(t, api.handler, http.MethodGet, "/api/register", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealthAndEvents(t *testing.T) {
	api := newTestAPI(t, stubDispatcher{})

	rec := do(t, api.handler, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, api.handler, http.MethodGet, "/api/events", "", "")
	var events []model.Event
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != len(model.Events) || events[0].Name != model.Events[0].Name {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestAdminLogin(t *testing.T) {
	api := newTestAPI(t, stubDispatcher{})

	rec := do(t, api.handler, http.MethodPost, "/api/admin/login", `{"email":"admin@symposium.test","password":"wrong"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = do(t, api.handler, http.MethodPost, "/api/admin/login", `{"email":"ADMIN@symposium.test","password":"correct horse"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := api.issuer.Parse(out.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Email != "admin@symposium.test" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	api := newTestAPI(t, stubDispatcher{})
	for _, path := range []string{"/api/admin/registrations", "/api/admin/summary"} {
		if rec := do(t, api.handler, http.MethodGet, path, "", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rec.Code)
		}
		if rec := do(t, api.handler, http.MethodGet, path, "", "garbage"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s with bad token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAdminListAndSummary(t *testing.T) {
	api := newTestAPI(t, stubDispatcher{})
	if rec := do(t, api.handler, http.MethodPost, "/api/register", registrationBody, ""); rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}
	token, _, err := api.issuer.Issue(auth.Admin{Email: "admin@symposium.test"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := do(t, api.handler, http.MethodGet, "/api/admin/registrations", "", token)
	var list []model.Registration
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Form.Email != "asha@college.edu" || !list[0].Delivery.AdminNotified {
		t.Fatalf("unexpected registrations %+v", list)
	}

	rec = do(t, api.handler, http.MethodGet, "/api/admin/summary", "", token)
	var summary []model.EventSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	for _, s := range summary {
		want := 0
		if s.Event == "24-Hour National Hackathon" {
			want = 1
		}
		if s.Count != want {
			t.Fatalf("unexpected count for %s: %d", s.Event, s.Count)
		}
	}
}

func TestAdminWithoutStoreOrLogin(t *testing.T) {
	issuer, err := auth.NewSessionIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	token, _, err := issuer.Issue(auth.Admin{Email: "admin@symposium.test"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	noStore := NewAPI(service.NewRegistrar(stubDispatcher{}, nil), nil, issuer, nil).Handler()
	if rec := do(t, noStore, http.MethodGet, "/api/admin/summary", "", token); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without store, got %d", rec.Code)
	}
	if rec := do(t, noStore, http.MethodPost, "/api/admin/login", `{}`, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without verifier, got %d", rec.Code)
	}
	if rec := do(t, noStore, http.MethodPost, "/api/register", registrationBody, ""); rec.Code != http.StatusOK {
		t.Fatalf("registration should work without a store, got %d", rec.Code)
	}
}
