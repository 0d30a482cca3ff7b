package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"audra/auth"
	"audra/domain"
	"audra/errs"
)

func (s *Server) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/signup", s.handleSignup).Methods("POST")
	r.HandleFunc("/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/me", s.requireAuth(s.handleMe)).Methods("GET")
}

// tokenResponse is the json body returned on successful signup and login.
type tokenResponse struct {
	Token string `json:"token"`
}

// handleSignup handles the route "POST /signup".
// It creates a new user from the json body and returns an auth token for it.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid signup data."))
		return
	}

	if err := s.us.CreateUser(r.Context(), &user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	token, err := s.jwt.IssueToken(user.ID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := json.NewEncoder(w).Encode(&tokenResponse{Token: token}); err != nil {
		errs.LogError(r, err)
	}
}

// handleLogin handles the route "POST /login".
// It checks the submitted credentials and returns an auth token on success.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.User
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid login data."))
		return
	}

	user, err := s.us.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	token, err := s.jwt.IssueToken(user.ID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := json.NewEncoder(w).Encode(&tokenResponse{Token: token}); err != nil {
		errs.LogError(r, err)
	}
}

// handleMe handles the route "GET /me".
// It returns the user behind the request's auth token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if err := json.NewEncoder(w).Encode(user); err != nil {
		errs.LogError(r, err)
	}
}
