package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type AccountResponse struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	AuthType  string    `json:"auth_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginFlow is the coordinator surface the handler drives
type LoginFlow interface {
	StartLogin(ctx context.Context, launch domain.LaunchParams) *domain.Step
	Complete(ctx context.Context, cb oauth.Callback) *domain.Step
	Abandon(ctx context.Context, state string) error
}

type AuthenticatorHandler struct {
	flow           LoginFlow
	accountService domain.AccountService
	jwtSvc         auth.JWTService
}

func NewAuthenticatorHandler(
	flow LoginFlow,
	accountService domain.AccountService,
	jwtSvc auth.JWTService,
) *AuthenticatorHandler {
	return &AuthenticatorHandler{
		flow:           flow,
		accountService: accountService,
		jwtSvc:         jwtSvc,
	}
}

func (h *AuthenticatorHandler) RegisterRoutes(router *mux.Router) {
	authRouter := router.PathPrefix("/authenticator").Subrouter()

	authRouter.HandleFunc("/facebook/login", h.handleLogin).Methods("GET")
	authRouter.HandleFunc("/facebook/callback", h.handleCallback).Methods("GET")
	authRouter.HandleFunc("/flows/{state}", h.handleAbandon).Methods("DELETE")

	// Protected routes
	protected := router.PathPrefix("/accounts").Subrouter()
	protected.Use(h.jwtSvc.Middleware())
	protected.HandleFunc("/me", h.handleGetAccount).Methods("GET")
	protected.HandleFunc("/me", h.handleUnlinkAccount).Methods("DELETE")
}

func (h *AuthenticatorHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	confirm, err := parseFlag(query.Get("confirm_credentials"), false)
	if err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, &ErrorResponse{Error: "invalid confirm_credentials"})
		return
	}
	requestNew, err := parseFlag(query.Get("request_new_account"), true)
	if err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, &ErrorResponse{Error: "invalid request_new_account"})
		return
	}

	step := h.flow.StartLogin(r.Context(), domain.LaunchParams{
		ConfirmCredentials: confirm,
		RequestNewAccount:  requestNew,
	})

	if step.Action == domain.ActionRedirect && query.Get("format") != "json" {
		http.Redirect(w, r, step.Redirect, http.StatusFound)
		return
	}

	h.respondWithJSON(w, stepStatus(step), step)
}

func (h *AuthenticatorHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	step := h.flow.Complete(r.Context(), oauth.Callback{
		State:            query.Get("state"),
		Code:             query.Get("code"),
		Error:            query.Get("error"),
		ErrorReason:      query.Get("error_reason"),
		ErrorDescription: query.Get("error_description"),
	})

	h.respondWithJSON(w, stepStatus(step), step)
}

func (h *AuthenticatorHandler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]

	if err := h.flow.Abandon(r.Context(), state); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthenticatorHandler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.accountService.Get(r.Context(), claims.AccountName)
	if err != nil {
		handleError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, &AccountResponse{
		Name:      account.Name,
		Type:      account.Type,
		AuthType:  account.AuthType,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	})
}

func (h *AuthenticatorHandler) handleUnlinkAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.accountService.Unlink(r.Context(), claims.AccountName); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthenticatorHandler) respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		err := json.NewEncoder(w).Encode(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// parseFlag reads a boolean query flag, returning def when it is absent
func parseFlag(value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	return strconv.ParseBool(value)
}

func stepStatus(step *domain.Step) int {
	switch step.Action {
	case domain.ActionNone:
		return http.StatusGone
	case domain.ActionError:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrFlowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmptyIdentifier):
		status = http.StatusBadRequest
	}

	http.Error(w, err.Error(), status)
}
