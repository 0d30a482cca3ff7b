package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"audra/auth"
	"audra/errs"
)

func (s *Server) registerFollowRoutes(r *mux.Router) {
	r.HandleFunc("/follow", s.handleFollow).Methods("POST")
	r.HandleFunc("/unfollow", s.handleUnfollow).Methods("POST")
	r.HandleFunc("/followers/{id}", s.handleGetFollowers).Methods("GET")
	r.HandleFunc("/following/{id}", s.handleGetFollowing).Methods("GET")
}

// followForm is the json body of the follow and unfollow routes.
type followForm struct {
	UserID         string `json:"userId"`
	UserToFollow   string `json:"userToFollow"`
	UserToUnfollow string `json:"userToUnfollow"`
}

// messageResponse is the json body returned by the follow and unfollow routes.
type messageResponse struct {
	Message string `json:"message"`
}

// handleFollow handles the route "POST /follow".
// It makes the acting user follow the user given in the body.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	var form followForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid follow data."))
		return
	}

	followerID, err := s.actingUserID(r, form.UserID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	followedID, err := primitive.ObjectIDFromHex(form.UserToFollow)
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}

	if err := s.fs.Follow(r.Context(), followerID, followedID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(&messageResponse{Message: "user followed"}); err != nil {
		errs.LogError(r, err)
	}
}

// handleUnfollow handles the route "POST /unfollow".
// It removes the follow edge if it exists; unfollowing someone the acting
// user doesn't follow succeeds without doing anything.
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	var form followForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid unfollow data."))
		return
	}

	followerID, err := s.actingUserID(r, form.UserID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	followedID, err := primitive.ObjectIDFromHex(form.UserToUnfollow)
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}

	if err := s.fs.Unfollow(r.Context(), followerID, followedID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(&messageResponse{Message: "user unfollowed"}); err != nil {
		errs.LogError(r, err)
	}
}

// handleGetFollowers handles the route "GET /followers/{id}".
// It returns the snapshots of everyone following the given user, as a flat
// array. A user nobody follows yet gets an empty array, not an error.
func (s *Server) handleGetFollowers(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}

	followers, err := s.fs.Followers(r.Context(), userID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(followers); err != nil {
		errs.LogError(r, err)
	}
}

// handleGetFollowing handles the route "GET /following/{id}".
// It returns the snapshots of everyone the given user follows.
func (s *Server) handleGetFollowing(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid Id format."))
		return
	}

	following, err := s.fs.Following(r.Context(), userID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := json.NewEncoder(w).Encode(following); err != nil {
		errs.LogError(r, err)
	}
}

// actingUserID resolves the user a follow/unfollow acts for. A request
// carrying a valid token acts as that user no matter what the body says;
// unauthenticated requests fall back to the body's userId field, which the
// original web client sends.
func (s *Server) actingUserID(r *http.Request, bodyUserID string) (primitive.ObjectID, error) {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.ID, nil
	}
	id, err := primitive.ObjectIDFromHex(bodyUserID)
	if err != nil {
		return primitive.NilObjectID, errs.Errorf(errs.EINVALID, "Invalid Id format.")
	}
	return id, nil
}
