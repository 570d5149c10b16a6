package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Hamish-Leahy/NEIS/internal/auth"
	"github.com/Hamish-Leahy/NEIS/internal/checklist"
	"github.com/Hamish-Leahy/NEIS/internal/config"
	"github.com/Hamish-Leahy/NEIS/internal/consent"
	"github.com/Hamish-Leahy/NEIS/internal/identity"
	"github.com/Hamish-Leahy/NEIS/internal/live"
	"github.com/Hamish-Leahy/NEIS/internal/model"
	"github.com/Hamish-Leahy/NEIS/internal/session"
	"github.com/Hamish-Leahy/NEIS/internal/speech"
)

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	verifier    identity.Verifier
	sessions    *session.Store
	live        *live.Manager
	transcriber speech.Transcriber

	mu         sync.Mutex
	checklists map[string]*checklist.List
}

func NewServer(cfg config.Config, log *zap.Logger, verifier identity.Verifier, sessions *session.Store, liveManager *live.Manager, transcriber speech.Transcriber) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		verifier:    verifier,
		sessions:    sessions,
		live:        liveManager,
		transcriber: transcriber,
		checklists:  make(map[string]*checklist.List),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.Get("/consents", s.handleConsentDescriptions)
	r.With(s.authMiddleware).Get("/dashboard", s.handleDashboard)

	r.Route("/checklist", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleGetChecklist)
		r.Get("/stats", s.handleChecklistStats)
		r.Post("/reset", s.handleResetChecklist)
		r.Post("/{itemID}/toggle", s.handleToggleChecklistItem)
	})

	r.Route("/session", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/start", s.handleStartSession)
		r.Get("/", s.handleSessionState)
		r.Post("/end", s.handleEndSession)
		r.Post("/chat", s.handleSessionChat)
		r.Post("/audio", s.handleToggleAudio)
		r.Post("/video", s.handleToggleVideo)
		r.Delete("/", s.handleTeardownSession)
	})

	r.Post("/speech/transcribe", s.handleTranscribe)

	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type consentPayload struct {
	Service           bool `json:"service"`
	Evaluation        bool `json:"evaluation"`
	Survey            bool `json:"survey"`
	CollaborativeCare bool `json:"collaborativeCare"`
}

type registerRequest struct {
	Email           string         `json:"email"`
	Password        string         `json:"password"`
	ConfirmPassword string         `json:"confirmPassword"`
	Name            string         `json:"name"`
	Role            string         `json:"role,omitempty"`
	Consents        consentPayload `json:"consents"`
}

type userSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar,omitempty"`
	Dashboard string `json:"dashboard"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

func summarize(id model.Identity) userSummary {
	return userSummary{
		ID:        id.ID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      string(id.Role),
		Avatar:    id.Avatar,
		Dashboard: id.Role.DashboardRoute(),
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	ident, err := s.verifier.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.issueSession(w, r.Context(), ident, http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	// Form-level validation happens here, before the verifier runs. A
	// rejected request mutates nothing.
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords_do_not_match")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}
	if !req.Consents.Service {
		writeError(w, http.StatusBadRequest, "service_consent_required")
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		role = model.Role(req.Role)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_role")
			return
		}
	}

	ident, err := s.verifier.Register(r.Context(), identity.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
		Consents: consent.Record{
			Service:           req.Consents.Service,
			Evaluation:        req.Consents.Evaluation,
			Survey:            req.Consents.Survey,
			CollaborativeCare: req.Consents.CollaborativeCare,
		},
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.issueSession(w, r.Context(), ident, http.StatusCreated)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	entry, err := s.sessions.Lookup(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	// Rotation: issuing a new session invalidates the presented token.
	s.issueSession(w, r.Context(), entry.Identity, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	// Logout is a hard reset: any in-flight view state for the user is
	// abandoned along with the persisted session.
	if err := s.sessions.Clear(r.Context(), claims.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = s.live.Teardown(claims.UserID)
	s.dropChecklist(claims.UserID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": "/"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	ident, err := s.sessions.Current(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session_expired")
		return
	}
	writeJSON(w, http.StatusOK, summarize(ident))
}

func (s *Server) handleConsentDescriptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, consent.Descriptions())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		writeError(w, http.StatusForbidden, "unknown_role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"role":  string(role),
		"route": role.DashboardRoute(),
	})
}

// checklistFor returns the user's current checklist, creating a fresh one
// on first access.
func (s *Server) checklistFor(userID string) *checklist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.checklists[userID]
	if !ok {
		list = checklist.Default()
		s.checklists[userID] = list
	}
	return list
}

func (s *Server) dropChecklist(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checklists, userID)
}

func (s *Server) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	list := s.checklistFor(claims.UserID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":      list.Items(),
		"stats":      list.Stats(),
		"canProceed": list.CanProceed(),
	})
}

func (s *Server) handleChecklistStats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	list := s.checklistFor(claims.UserID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      list.Stats(),
		"canProceed": list.CanProceed(),
	})
}

func (s *Server) handleResetChecklist(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	s.mu.Lock()
	s.checklists[claims.UserID] = checklist.Default()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	itemID := chi.URLParam(r, "itemID")
	list := s.checklistFor(claims.UserID)
	if err := list.Toggle(itemID); err != nil {
		writeError(w, http.StatusNotFound, "unknown_item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      list.Stats(),
		"canProceed": list.CanProceed(),
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	if !s.checklistFor(claims.UserID).CanProceed() {
		writeError(w, http.StatusConflict, "checklist_incomplete")
		return
	}

	controller, err := s.live.Start(claims.UserID)
	if err != nil {
		if errors.Is(err, live.ErrSessionActive) {
			writeError(w, http.StatusConflict, "session_already_active")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.log.Info("live session started", zap.String("user_id", claims.UserID))
	writeJSON(w, http.StatusCreated, controller.State())
}

func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *live.Controller {
	claims := claimsFromContext(r.Context())
	controller, err := s.live.Get(claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_active_session")
		return nil
	}
	return controller
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	controller := s.sessionFor(w, r)
	if controller == nil {
		return
	}
	writeJSON(w, http.StatusOK, controller.State())
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	controller := s.sessionFor(w, r)
	if controller == nil {
		return
	}
	elapsed, err := controller.End()
	if err != nil {
		writeError(w, http.StatusConflict, "session_already_ended")
		return
	}
	claims := claimsFromContext(r.Context())
	s.log.Info("live session ended",
		zap.String("user_id", claims.UserID),
		zap.Int("duration_seconds", elapsed),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"durationSeconds": elapsed,
		"duration":        live.FormatDuration(elapsed),
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	controller := s.sessionFor(w, r)
	if controller == nil {
		return
	}
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	msg, sent, err := controller.Send(req.Message)
	if err != nil {
		writeError(w, http.StatusConflict, "session_already_ended")
		return
	}
	if !sent {
		// Empty-after-trim input leaves the message log untouched.
		writeJSON(w, http.StatusOK, map[string]bool{"sent": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sent": true, "message": msg})
}

func (s *Server) handleToggleAudio(w http.ResponseWriter, r *http.Request) {
	controller := s.sessionFor(w, r)
	if controller == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"audioEnabled": controller.ToggleAudio()})
}

func (s *Server) handleToggleVideo(w http.ResponseWriter, r *http.Request) {
	controller := s.sessionFor(w, r)
	if controller == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"videoEnabled": controller.ToggleVideo()})
}

func (s *Server) handleTeardownSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.live.Teardown(claims.UserID); err != nil {
		writeError(w, http.StatusNotFound, "no_active_session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusNotImplemented, "speech_unsupported")
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = s.cfg.SpeechLanguage
	}
	result, err := s.transcriber.Transcribe(r.Context(), r.Body, language)
	if err != nil {
		if errors.Is(err, speech.ErrUnsupported) {
			writeError(w, http.StatusNotImplemented, "speech_unsupported")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) issueSession(w http.ResponseWriter, ctx context.Context, ident model.Identity, status int) {
	refreshToken, err := s.sessions.Set(ctx, ident)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: ident.ID,
		Role:   string(ident.Role),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, status, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         summarize(ident),
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		// A valid token is not enough: logout clears the persisted
		// session, which must invalidate outstanding tokens.
		if _, err := s.sessions.Current(r.Context(), claims.UserID); err != nil {
			writeError(w, http.StatusUnauthorized, "session_expired")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
