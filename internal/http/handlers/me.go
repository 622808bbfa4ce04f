package handlers

import "net/http"

// Me returns the caller's account with its remaining credit balance.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	resp := map[string]any{
		"id":      user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"credits": user.Credits,
	}
	if user.IsPrivileged() {
		resp["unlimited"] = true
	}
	a.json(w, http.StatusOK, resp)
}
