package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/http/middleware"
	"github.com/brody/brody-back/internal/service"
)

const oauthStateCookie = "brody_oauth_state"

type userResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	IsActive    bool           `json:"is_active"`
	IsVerified  bool           `json:"is_verified"`
	CreatedAt   time.Time      `json:"created_at"`
	Preferences map[string]any `json:"preferences"`
}

func newUserResponse(user *domain.User) userResponse {
	preferences := user.Preferences
	if preferences == nil {
		preferences = map[string]any{}
	}
	return userResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsVerified:  user.IsVerified,
		CreatedAt:   user.CreatedAt,
		Preferences: preferences,
	}
}

type loginResponse struct {
	User  userResponse    `json:"user"`
	Token auth.TokenPair `json:"token"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (api *API) Register(w http.ResponseWriter, r *http.Request) {
	var request registerRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "name, email and password are required")
		return
	}

	result, err := api.auth.Register(r.Context(), service.RegisterInput{
		Name:     request.Name,
		Email:    request.Email,
		Password: request.Password,
	}, sessionMeta(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: newUserResponse(result.User), Token: result.Token})
}

// Login accepts a JSON body or an OAuth2 password form where the email is
// sent as username.
func (api *API) Login(w http.ResponseWriter, r *http.Request) {
	var request credentialsRequest
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid form")
			return
		}
		request.Username = r.PostForm.Get("username")
		request.Password = r.PostForm.Get("password")
	} else if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	email := request.Email
	if email == "" {
		email = request.Username
	}
	if strings.TrimSpace(email) == "" || request.Password == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	result, err := api.auth.Login(r.Context(), email, request.Password, sessionMeta(r))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: newUserResponse(result.User), Token: result.Token})
}

func (api *API) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (api *API) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := readRefreshToken(w, r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	access, err := api.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid refresh token")
			return
		}
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": access, "token_type": "bearer"})
}

func (api *API) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := readRefreshToken(w, r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if err := api.auth.Logout(r.Context(), token); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.NewSessionToken()
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	url, err := api.google.AuthCodeURL(state)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "oauth_not_configured", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback returns the exchanged Google credentials to the caller.
func (api *API) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "missing_code", "Missing code")
		return
	}
	if cookie, err := r.Cookie(oauthStateCookie); err == nil && cookie.Value != r.URL.Query().Get("state") {
		writeError(w, r, http.StatusBadRequest, "invalid_state", "state mismatch")
		return
	}

	credentials, err := api.google.Exchange(r.Context(), code)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrOAuthNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, r, status, "oauth_exchange_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, credentials)
}

func readRefreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return "", false
		}
		token := strings.TrimSpace(r.PostForm.Get("refresh_token"))
		return token, token != ""
	}
	var request refreshRequest
	if err := decodeJSON(w, r, &request); err != nil {
		return "", false
	}
	token := strings.TrimSpace(request.RefreshToken)
	return token, token != ""
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data")
}

func sessionMeta(r *http.Request) service.SessionMeta {
	return service.SessionMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
