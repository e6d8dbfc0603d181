package api

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/google/uuid"
)

const (
	stateCookieName = "patreon_oauth_state"
	stateCookiePath = "/api/auth/patreon"
	stateCookieTTL  = 600
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Patreon login</title></head>
<body>
<script>
if (window.opener) {
  window.opener.postMessage({
    type: 'patreon-auth',
    token: {{.Token}},
    user: {{.User}}
  }, '*');
}
window.close();
</script>
</body>
</html>
`))

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// PatreonLoginHandler handles GET /api/auth/patreon/login
func (h *HandlerProvider) PatreonLoginHandler(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   stateCookieTTL,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.identity.AuthURL(state), http.StatusFound)
}

// PatreonCallbackHandler handles GET /api/auth/patreon/callback
func (h *HandlerProvider) PatreonCallbackHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})

	token, err := h.identity.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "patreon code exchange", "error", err)
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	raw, err := h.identity.Profile(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "patreon identity", "error", err)
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	var user any
	err = json.Unmarshal(raw, &user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "decode patreon identity", "error", err)
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	err = callbackPage.Execute(w, map[string]any{"Token": token, "User": user})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render callback page", "error", err)
	}
}

// PatreonRefreshHandler handles POST /api/auth/patreon/refresh
func (h *HandlerProvider) PatreonRefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	token, err := h.identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "patreon refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "OAuth error")
		return
	}

	writeJSON(w, http.StatusOK, token)
}
