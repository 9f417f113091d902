package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"chepochem.org/internal/audit"
	"chepochem.org/internal/auth"
	"chepochem.org/internal/rbac"
)

type tokenRequest struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	role, ok := rbac.ParseRole(strings.TrimSpace(req.Role))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}

	// Optional shared-secret gate for deployments where the token
	// endpoint is not fronted by an identity provider.
	if hash := os.Getenv("CHEPOCHEM_TOKEN_PASSWORD_HASH"); hash != "" {
		if err := auth.VerifyPassword(hash, req.Password); err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
	}

	token, err := auth.GenerateToken(userID, role, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	if a.trail != nil {
		a.trail.TryAppend(r.Context(), audit.Entry{
			ActorID: userID,
			Action:  "token_issued",
			Detail: map[string]any{
				"role":       role.String(),
				"expires_at": expiresAt.Format(time.RFC3339),
			},
		})
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
