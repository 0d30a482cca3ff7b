package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"audra/auth"
	"audra/domain"
	"audra/errs"
)

func (s *Server) registerUserRoutes(r *mux.Router) {
	// Get the profile data of a specific user.
	r.HandleFunc("/profile/{id}", s.handleGetProfile).Methods("GET")

	// Update the authed user's profile data.
	r.HandleFunc("/profile/update", s.requireAuth(s.handleUpdateProfile)).Methods("PUT")

	// Search for users.
	r.HandleFunc("/search/profiles/{term}", s.handleSearchProfiles).Methods("GET")
}

// handleGetProfile handles the route "GET /profile/{id}".
// It returns the requested user's profile data including the follow counters.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}

	user, err := s.us.ByID(r.Context(), userID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(user); err != nil {
		errs.LogError(r, err)
	}
}

// handleUpdateProfile handles the route "PUT /profile/update".
// It reads profile fields from the json body and updates the authed user.
// Snapshots of the user already embedded in edge lists keep the old values.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd domain.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid update data."))
		return
	}

	authedUser := auth.GetUser(r.Context())
	user, err := s.us.UpdateUser(r.Context(), authedUser.ID, &upd)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(user); err != nil {
		errs.LogError(r, err)
	}
}

// handleSearchProfiles handles the route "GET /search/profiles/{term}".
// It parses the search term from the url, runs a user search with it, and
// returns the resulting slice of users.
func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	searchTerm := mux.Vars(r)["term"]

	profiles, err := s.us.Search(r.Context(), searchTerm)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(profiles); err != nil {
		errs.LogError(r, err)
	}
}
