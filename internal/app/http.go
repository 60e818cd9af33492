package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"collabsauce/api/internal/authpw"
	"collabsauce/api/internal/util"
)

type HTTPServer struct {
	service  *Service
	gatherer prometheus.Gatherer
	limiters *cache.Cache
}

// NewHTTPServer serves the API. gatherer backs /metrics and may be nil.
func NewHTTPServer(service *Service, gatherer prometheus.Gatherer) *HTTPServer {
	return &HTTPServer{
		service:  service,
		gatherer: gatherer,
		limiters: cache.New(10*time.Minute, 20*time.Minute),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.HandleFunc("GET /api/ready", s.handleReady)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)

	mux.HandleFunc("GET /api/users", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.ListUsers(r.Context(), sess))
	}))
	mux.HandleFunc("GET /api/users/me", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.Me(r.Context(), sess))
	}))
	mux.HandleFunc("GET /api/users/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.GetUser(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("GET /api/profiles/me", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.MyProfile(r.Context(), sess))
	}))
	mux.HandleFunc("PUT /api/profiles/me", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body ProfileInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusOK)(s.service.UpdateMyProfile(r.Context(), sess, body))
	}))

	mux.HandleFunc("GET /api/organizations", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.ListOrganizations(r.Context(), sess))
	}))
	mux.HandleFunc("POST /api/organizations", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body struct {
			Name string `json:"name"`
		}
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateOrganization(r.Context(), sess, body.Name))
	}))
	mux.HandleFunc("GET /api/organizations/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.GetOrganization(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("PUT /api/organizations/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			var body struct {
				Name string `json:"name"`
			}
			if !decodeOrReject(w, r, &body) {
				return
			}
			respond(w, r, http.StatusOK)(s.service.RenameOrganization(r.Context(), sess, id, body.Name))
		})
	}))

	mux.HandleFunc("GET /api/memberships", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.ListMemberships(r.Context(), sess))
	}))
	mux.HandleFunc("DELETE /api/memberships/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			if err := s.service.DeleteMembership(r.Context(), sess, id); err != nil {
				writeServiceError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}))

	mux.HandleFunc("GET /api/invites", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.ListInvites(r.Context(), sess))
	}))
	mux.HandleFunc("POST /api/invites", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body InviteInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateInvite(r.Context(), sess, body))
	}))
	mux.HandleFunc("POST /api/invites/accept", s.optionalAuth(func(w http.ResponseWriter, r *http.Request, sess *Session) {
		var body AcceptInviteInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusOK)(s.service.AcceptInvite(r.Context(), sess, body))
	}))
	mux.HandleFunc("POST /api/invites/{id}/deny", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.DenyInvite(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("POST /api/invites/{id}/cancel", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.CancelInvite(r.Context(), sess, id))
		})
	}))

	mux.HandleFunc("GET /api/projects", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		respond(w, r, http.StatusOK)(s.service.ListProjects(r.Context(), sess))
	}))
	mux.HandleFunc("POST /api/projects", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body ProjectInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateProject(r.Context(), sess, body))
	}))
	mux.HandleFunc("GET /api/projects/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.GetProject(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("PUT /api/projects/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			var body ProjectInput
			if !decodeOrReject(w, r, &body) {
				return
			}
			respond(w, r, http.StatusOK)(s.service.UpdateProject(r.Context(), sess, id, body))
		})
	}))
	mux.HandleFunc("GET /api/projects/{id}/columns", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.ListTaskColumns(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("POST /api/projects/{id}/screenshot-upload-url", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.ScreenshotUploadURL(r.Context(), sess, id))
		})
	}))

	mux.HandleFunc("GET /api/tasks", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withQueryID(w, r, "project", func(projectID int64) {
			respond(w, r, http.StatusOK)(s.service.ListTasks(r.Context(), sess, projectID))
		})
	}))
	mux.HandleFunc("POST /api/tasks", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body TaskInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateTask(r.Context(), sess, body))
	}))
	mux.HandleFunc("GET /api/tasks/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.GetTask(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("PUT /api/tasks/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			var body TaskUpdateInput
			if !decodeOrReject(w, r, &body) {
				return
			}
			respond(w, r, http.StatusOK)(s.service.UpdateTask(r.Context(), sess, id, body))
		})
	}))
	mux.HandleFunc("GET /api/tasks/{id}/metadata", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			respond(w, r, http.StatusOK)(s.service.GetTaskMetadata(r.Context(), sess, id))
		})
	}))
	mux.HandleFunc("POST /api/tasks/reorder", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body ReorderInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusOK)(s.service.ReorderTasks(r.Context(), sess, body))
	}))
	mux.HandleFunc("POST /api/tasks/widget", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body WidgetTaskInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateWidgetTask(r.Context(), &sess, body))
	}))
	mux.HandleFunc("POST /api/tasks/extension", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body ExtensionTaskInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateExtensionTask(r.Context(), &sess, body))
	}))
	mux.HandleFunc("POST /api/tasks/{id}/column", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			var body struct {
				TaskColumnID int64 `json:"task_column"`
			}
			if !decodeOrReject(w, r, &body) {
				return
			}
			respond(w, r, http.StatusOK)(s.service.MoveTaskColumn(r.Context(), sess, id, body.TaskColumnID))
		})
	}))
	mux.HandleFunc("POST /api/tasks/{id}/assignee", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withID(w, r, "id", func(id int64) {
			var body struct {
				AssignedToID *int64 `json:"assigned_to"`
			}
			if !decodeOrReject(w, r, &body) {
				return
			}
			respond(w, r, http.StatusOK)(s.service.UpdateAssignee(r.Context(), sess, id, body.AssignedToID))
		})
	}))

	mux.HandleFunc("GET /api/comments", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		withQueryID(w, r, "task", func(taskID int64) {
			respond(w, r, http.StatusOK)(s.service.ListComments(r.Context(), sess, taskID))
		})
	}))
	mux.HandleFunc("POST /api/comments", s.authed(func(w http.ResponseWriter, r *http.Request, sess Session) {
		var body CommentInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateComment(r.Context(), sess, body))
	}))

	mux.HandleFunc("POST /api/widget/tasks", s.rateLimited(s.optionalAuth(func(w http.ResponseWriter, r *http.Request, sess *Session) {
		var body WidgetTaskInput
		if !decodeOrReject(w, r, &body) {
			return
		}
		respond(w, r, http.StatusCreated)(s.service.CreateWidgetTask(r.Context(), sess, body))
	})))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.service.cfg.CORSOrigin,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
	return s.withMiddleware(c.Handler(mux))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	respond(w, r, http.StatusCreated)(s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	}))
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	respond(w, r, http.StatusOK)(s.service.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	}))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess Session)

type optionalSessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

func (s *HTTPServer) authed(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, r, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, sess)
	}
}

// optionalAuth passes a nil session when the request carries no token. A
// token that is present must still be valid.
func (s *HTTPServer) optionalAuth(next optionalSessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r) == "" {
			next(w, r, nil)
			return
		}
		sess, r, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, &sess)
	}
}

// requireSession authenticates the request and returns it with the user id
// added to its logger.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, *http.Request, bool) {
	token := bearerToken(r)
	if token == "" {
		writeServiceError(w, r, unauthorizedError())
		return Session{}, r, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return Session{}, r, false
	}
	logger := zerolog.Ctx(r.Context()).With().Int64("user_id", sess.User.ID).Logger()
	return sess, r.WithContext(logger.WithContext(r.Context())), true
}

// rateLimited throttles anonymous widget submissions per client address.
func (s *HTTPServer) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) limiter(key string) *rate.Limiter {
	if l, ok := s.limiters.Get(key); ok {
		return l.(*rate.Limiter)
	}
	cfg := s.service.cfg
	l := rate.NewLimiter(rate.Limit(cfg.WidgetRateLimit), cfg.WidgetBurst)
	if err := s.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// Another request created it first.
		if existing, ok := s.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewRequestID()
		}
		logger := zerolog.Ctx(r.Context()).With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		elapsed := time.Since(started)
		s.service.metrics.ObserveHTTP(r.Method, writer.status, elapsed.Seconds())
		logger.Info().
			Int("status", writer.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// respond writes a service call's result, or its error.
func respond(w http.ResponseWriter, r *http.Request, status int) func(any, error) {
	return func(payload any, err error) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, status, payload)
	}
}

func withID(w http.ResponseWriter, r *http.Request, name string, next func(int64)) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, r, notFoundError())
		return
	}
	next(id)
}

func withQueryID(w http.ResponseWriter, r *http.Request, name string, next func(int64)) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, r, validationError(fmt.Sprintf("The %s query parameter is required.", name)))
		return
	}
	next(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func decodeOrReject(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
