package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/middleware"
	"github.com/jefoffice/walletgate/session"
)

// Session endpoint paths.
const (
	ValidatePath  = walletgate.SessionValidatePath
	ReadPath      = walletgate.SessionReadPath
	DeleteOnePath = walletgate.SessionDeleteOnePath
	DevLoginPath  = walletgate.SessionDevLoginPath
	HealthPath    = "/healthz"
)

// Validate endpoint messages.
const (
	MessageCookieNotFound  = "Session cookie not found."
	MessageSessionInvalid  = "Session token is invalid or expired."
	MessageModuleMissing   = "Module number is not configured."
	MessageModuleDenied    = "Entity/module validation failed."
	MessageSessionValid    = "Session and module are valid."
	MessageSessionDeleted  = "Session deleted"
	MessageNoSessionCookie = "No session cookie"
	MessageSessionExpired  = "Invalid or expired session"
)

const maxDevLoginBody = 4 << 10

// SessionHandler serves the session endpoints for one Gateway.
type SessionHandler struct {
	gw *walletgate.Gateway
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(gw *walletgate.Gateway) *SessionHandler {
	return &SessionHandler{gw: gw}
}

// Register mounts the session endpoints, the access-denied page and the
// health check on r. The dev login endpoint is mounted only when the gateway
// config enables it.
func (h *SessionHandler) Register(r *mux.Router) {
	cfg := h.gw.Config()

	r.HandleFunc(ValidatePath, h.Validate).Methods(http.MethodGet)
	r.HandleFunc(ReadPath, h.Read).Methods(http.MethodGet)
	r.HandleFunc(DeleteOnePath, h.DeleteOne).Methods(http.MethodDelete)
	r.HandleFunc(cfg.Routes.AccessDeniedPath, h.AccessDenied).Methods(http.MethodGet)
	r.HandleFunc(HealthPath, h.Health).Methods(http.MethodGet)
	if cfg.DevLogin {
		r.HandleFunc(DevLoginPath, h.DevLogin).Methods(http.MethodPost)
	}
}

// SessionPayload is the identity echoed by the validate endpoint.
type SessionPayload struct {
	SessionNumber  string `json:"session_number"`
	EntityNumber   string `json:"entity_number"`
	EmployeeNumber string `json:"employee_number"`
}

// ValidateResponse is the body of the validate endpoint. IsValid is the
// string "true" or "false".
type ValidateResponse struct {
	CookieExists bool           `json:"cookie_exists"`
	IsValid      string         `json:"is_valid"`
	Message      string         `json:"message"`
	ModuleNumber string         `json:"module_number"`
	ElapsedTime  string         `json:"elapsed_time"`
	Payload      SessionPayload `json:"payload"`
}

func (h *SessionHandler) validateResponse(w http.ResponseWriter, status int, body ValidateResponse) {
	if body.IsValid != "true" {
		body.IsValid = "false"
	}
	middleware.WriteJSON(w, status, body)
}

// Validate checks the session cookie and module entitlement of the caller.
// It answers 200 when both hold, 401 for a missing or invalid session, 403
// on denial, 429 when rate limited and 502 when the policy service fails.
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if d := h.gw.Admit(r); !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
		h.validateResponse(w, http.StatusTooManyRequests, ValidateResponse{
			Message: walletgate.MessageTooManyRequests,
		})
		return
	}

	state, err := h.gw.ReadSession(r)
	switch {
	case !state.CookieExists:
		h.validateResponse(w, http.StatusUnauthorized, ValidateResponse{
			Message: MessageCookieNotFound,
		})
		return
	case err != nil || state.Claims == nil:
		h.validateResponse(w, http.StatusUnauthorized, ValidateResponse{
			CookieExists: true,
			Message:      MessageSessionInvalid,
		})
		return
	}

	claims := state.Claims
	resp := ValidateResponse{
		CookieExists: true,
		ElapsedTime:  walletgate.HumanizeElapsed(claims.IssuedTime(), h.gw.Now()),
		Payload: SessionPayload{
			SessionNumber:  claims.SessionNumber,
			EntityNumber:   claims.EntityNumber,
			EmployeeNumber: claims.EmployeeNumber,
		},
	}

	verdict, err := h.gw.CheckModule(r.Context(), claims.EntityNumber)
	resp.ModuleNumber = verdict.ModuleNumber
	switch {
	case errors.Is(err, walletgate.ErrModuleNotConfigured):
		resp.Message = MessageModuleMissing
		h.validateResponse(w, http.StatusUnauthorized, resp)
	case err != nil:
		resp.Message = walletgate.MessagePolicyUnavailable
		h.validateResponse(w, http.StatusBadGateway, resp)
	case !verdict.Valid:
		resp.Message = firstNonEmpty(verdict.Message, MessageModuleDenied)
		h.validateResponse(w, http.StatusForbidden, resp)
	default:
		resp.IsValid = "true"
		resp.Message = firstNonEmpty(verdict.Message, MessageSessionValid)
		h.validateResponse(w, http.StatusOK, resp)
	}
}

// SessionView is the session summary returned by the read endpoint.
type SessionView struct {
	EntityNumber   string     `json:"entity_number"`
	EmployeeNumber string     `json:"employee_number"`
	SessionNumber  string     `json:"session_number,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ReadResponse is the body of the read endpoint.
type ReadResponse struct {
	Exists  bool         `json:"exists"`
	Message string       `json:"message"`
	Session *SessionView `json:"session"`
}

// Read decodes the session cookie without a policy call. It always answers
// 200; Exists reports whether a current session was found.
func (h *SessionHandler) Read(w http.ResponseWriter, r *http.Request) {
	state, err := h.gw.ReadSession(r)
	switch {
	case !state.CookieExists:
		middleware.WriteJSON(w, http.StatusOK, ReadResponse{Message: MessageNoSessionCookie})
		return
	case err != nil || state.Claims == nil:
		middleware.WriteJSON(w, http.StatusOK, ReadResponse{Message: MessageSessionExpired})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ReadResponse{
		Exists:  true,
		Message: "OK",
		Session: newSessionView(state.Claims),
	})
}

func newSessionView(c *session.Claims) *SessionView {
	v := &SessionView{
		EntityNumber:   c.EntityNumber,
		EmployeeNumber: c.EmployeeNumber,
		SessionNumber:  c.SessionNumber,
	}
	if t := c.IssuedTime(); !t.IsZero() {
		t = t.UTC()
		v.IssuedAt = &t
	}
	if t := c.ExpiresTime(); !t.IsZero() {
		t = t.UTC()
		v.ExpiresAt = &t
	}
	return v
}

// DeleteOne expires the session cookie and its hardened variants.
func (h *SessionHandler) DeleteOne(w http.ResponseWriter, r *http.Request) {
	h.gw.ClearSession(w, r)
	middleware.WriteError(w, http.StatusOK, MessageSessionDeleted)
}

// DevLoginRequest is the body of the dev login endpoint.
type DevLoginRequest struct {
	EntityNumber   string `json:"entity_number"`
	EmployeeNumber string `json:"employee_number"`
}

// DevLoginResponse describes the session just issued.
type DevLoginResponse struct {
	Message string       `json:"message"`
	Session *SessionView `json:"session"`
}

// DevLogin issues a session for the posted identity with a fresh session
// number. It stands in for the login service during local development.
func (h *SessionHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req DevLoginRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDevLoginBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.gw.IssueSession(r.Context(), w, session.Claims{
		EntityNumber:   req.EntityNumber,
		EmployeeNumber: req.EmployeeNumber,
		SessionNumber:  uuid.NewString(),
	})
	switch {
	case errors.Is(err, session.ErrInvalidClaims):
		middleware.WriteError(w, http.StatusBadRequest, "entity_number and employee_number are required")
		return
	case err != nil:
		h.gw.Logger().Error("dev login failed",
			slog.String("request_id", walletgate.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, http.StatusServiceUnavailable, "unable to issue session")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, DevLoginResponse{
		Message: "Session issued",
		Session: newSessionView(claims),
	})
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status    string `json:"status"`
	KeyLoaded bool   `json:"key_loaded"`
}

// Health reports liveness and whether the session key has been fetched.
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		KeyLoaded: h.gw.KeyLoaded(),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
