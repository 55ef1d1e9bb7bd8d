package httpx

import "net/http"

// Routes builds the API mux for the authentication endpoints.
func Routes(h *AuthHandlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", h.withSession(h.login))
	// The email-link callback carries its token in the hash query parameter
	// and completes the same login flow.
	mux.HandleFunc("GET /auth/email", h.withSession(h.login))
	mux.HandleFunc("POST /auth/logout", h.withSession(h.logout))
	mux.HandleFunc("POST /auth/create", h.withSession(h.create))
	mux.HandleFunc("POST /auth/password", h.withSession(h.updatePassword))
	mux.HandleFunc("GET /auth/csrf", h.withSession(h.csrfToken))
	mux.HandleFunc("GET /auth/status", h.withSession(h.status))
	mux.HandleFunc("GET /auth/initiator", h.withSession(h.initiator))
	mux.HandleFunc("GET /healthz", handleHealth)
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
