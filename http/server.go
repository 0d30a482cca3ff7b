package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"audra/auth"
	"audra/domain"
	"audra/errs"
)

// Server provides most of the http functionality of this app, namely
// routing, request handling, and middleware. It resolves the requesting
// user from their auth token before handing things over to one of the crud
// services.
type Server struct {
	router *mux.Router
	log    *zap.Logger
	jwt    *auth.JWT
	us     domain.UserService
	fs     domain.FollowService
}

// NewServer returns a new instance of the server, registers all necessary
// routes and gives their handlers access to the services passed in.
func NewServer(us domain.UserService, fs domain.FollowService, jwt *auth.JWT, log *zap.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		log:    log,
		jwt:    jwt,
		us:     us,
		fs:     fs,
	}

	// Register routes of the auth system.
	s.registerAuthRoutes(s.router)

	// Register routes of the crud system.
	s.registerUserRoutes(s.router)
	s.registerFollowRoutes(s.router)

	// Set up middleware that needs to run on every request.
	s.router.Use(setContentTypeJSON, s.authUser)
	return s
}

// ServeHTTP lets the Server act as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// The setContentTypeJSON middleware sets the content type to "application/json".
func setContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// The authUser middleware resolves the user behind the request's auth token
// and puts it into the request context. Requests without a valid token just
// continue unauthenticated; handlers that need a user are wrapped in
// requireAuth.
func (s *Server) authUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := s.jwt.ParseToken(tokenStr)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.us.ByID(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		r = r.WithContext(auth.SetUser(r.Context(), user))
		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the auth token from the Authorization header, falling
// back to the x-auth-token header the original web client sends.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.Header.Get("x-auth-token")
}

// requireAuth rejects requests that did not resolve to a user.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			errs.ReturnError(w, r, errs.Errorf(errs.EUNAUTHORIZED, "You must be logged in."))
			return
		}
		next.ServeHTTP(w, r)
	}
}

// Run starts to listen and serve on the specified port.
func (s *Server) Run(port int) {
	addr := ":" + strconv.Itoa(port)
	s.log.Info("server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, s.router); err != nil {
		s.log.Fatal("server stopped", zap.Error(err))
	}
}
