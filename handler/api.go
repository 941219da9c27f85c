package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"Symposium/auth"
	"Symposium/model"
	"Symposium/repo"
	"Symposium/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// API serves the registration endpoints and the admin dashboard data.
type API struct {
	registrar *service.Registrar
	store     repo.RegistrationStore
	verifier  auth.CredentialVerifier
	sessions  *auth.SessionIssuer
	origins   []string
}

// NewAPI wires the HTTP surface. verifier and sessions may be nil, which
// disables the admin endpoints.
func NewAPI(registrar *service.Registrar, verifier auth.CredentialVerifier, sessions *auth.SessionIssuer, origins []string) *API {
	return &API{
		registrar: registrar,
		store:     registrar.Store(),
		verifier:  verifier,
		sessions:  sessions,
		origins:   origins,
	}
}

// Handler returns the routed handler with CORS and access logging applied.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", a.register)
	mux.HandleFunc("GET /api/health", a.health)
	mux.HandleFunc("GET /api/events", a.events)
	mux.HandleFunc("POST /api/admin/login", a.login)
	mux.Handle("GET /api/admin/registrations", a.requireAdmin(http.HandlerFunc(a.registrations)))
	mux.Handle("GET /api/admin/summary", a.requireAdmin(http.HandlerFunc(a.summary)))

	var h http.Handler = cors.New(cors.Options{
		AllowedOrigins: a.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	return hlog.NewHandler(log.Logger)(h)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var f model.RegistrationForm
	if err := decodeJSON(w, r, &f); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "Invalid request body."})
		return
	}

	_, err := a.registrar.Register(r.Context(), f)
	status, msg := service.Outcome(err)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Int("status", status).Msg("registration rejected")
	}
	writeJSON(w, status, apiResponse{Success: err == nil, Message: msg})
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) events(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Events)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	if a.verifier == nil || a.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Message: "Admin login is not configured."})
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: "Invalid request body."})
		return
	}

	admin, err := a.verifier.Verify(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Message: "Admin login is not configured."})
		return
	case err != nil:
		hlog.FromRequest(r).Warn().Err(err).Msg("admin login failed")
		writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Invalid credentials."})
		return
	}

	token, expires, err := a.sessions.Issue(admin)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error issuing session")
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error. Please try again."})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, ExpiresAt: expires})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, apiResponse{Message: "Admin login is not configured."})
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Unauthorized."})
			return
		}
		claims, err := a.sessions.Parse(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "Unauthorized."})
			return
		}
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("admin", claims.Email)
		})
		next.ServeHTTP(w, r)
	})
}

func (a *API) registrations(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Message: "Registration storage is not configured."})
		return
	}
	list, err := a.store.ListRegistrations(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error listing registrations")
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error. Please try again."})
		return
	}
	if list == nil {
		list = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiResponse{Message: "Registration storage is not configured."})
		return
	}
	summary, err := a.store.SummarizeByEvent(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("error summarizing registrations")
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "Server error. Please try again."})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}
