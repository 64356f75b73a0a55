// Package server exposes the table server's external interfaces: the
// REST surface (session creation, accounts, uploads, static card
// images) and the websocket game connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gametable/gametable-server-go/internal/config"
	"github.com/gametable/gametable-server-go/internal/game"
	"github.com/gametable/gametable-server-go/internal/metrics"
	"github.com/gametable/gametable-server-go/internal/repository"
	"github.com/gametable/gametable-server-go/internal/user"
)

// CardCatalog is the read side of the ingested card catalog, backing the
// spawn-card search endpoints.
type CardCatalog interface {
	SearchByName(ctx context.Context, name, setCode string, limit int) ([]repository.CardRecord, error)
	GetPrinting(ctx context.Context, setCode, collectorNumber string) (repository.CardRecord, error)
}

// Server wires the HTTP and websocket handlers to their collaborators.
type Server struct {
	registry *game.Registry
	users    *user.Manager
	cards    CardCatalog
	storage  config.StorageConfig
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// New creates a server.
func New(registry *game.Registry, users *user.Manager, cards CardCatalog, storage config.StorageConfig, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		registry: registry,
		users:    users,
		cards:    cards,
		storage:  storage,
		metrics:  m,
		upgrader: websocket.Upgrader{
			// The browser client is served from a different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/game/create", s.handleCreateGame)
	r.Get("/ws/{game_id}/{player_id}", s.handleWS)
	r.Get("/ws/{game_id}/{player_id}/{player_name}", s.handleWS)

	r.Get("/cards/search", s.handleSearchCards)
	r.Get("/cards/query", s.handleQueryCard)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/reset-password", s.handleResetPassword)
	r.Post("/upload", s.handleUpload)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Card and player images live under the data directory and are
	// served as-is; their paths are opaque to the engine.
	fileServer := http.FileServer(http.Dir(s.storage.DataDir))
	r.Handle("/Sets/*", fileServer)
	r.Handle("/Players/*", fileServer)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleCreateGame(w http.ResponseWriter, _ *http.Request) {
	sess := s.registry.Create()
	s.metrics.SessionsCreated.Inc()

	writeJSON(w, http.StatusCreated, map[string]string{
		"game_id": sess.ID,
		"message": "Game created successfully",
	})
}

// searchLimit caps /cards/search results; the spawn modal only shows a
// short list anyway.
const searchLimit = 50

type cardJSON struct {
	Name            string `json:"name"`
	CollectorNumber string `json:"collector_number"`
	SetCode         string `json:"set_code"`
	SetName         string `json:"set_name"`
	IsTwoSided      bool   `json:"is_two_sided"`
}

type searchCardsResponse struct {
	Success bool       `json:"success"`
	Cards   []cardJSON `json:"cards"`
}

func (s *Server) handleSearchCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, searchCardsResponse{Cards: []cardJSON{}})
		return
	}

	records, err := s.cards.SearchByName(r.Context(), query, r.URL.Query().Get("set_code"), searchLimit)
	if err != nil {
		s.logger.Error("card search failed", zap.String("query", query), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, searchCardsResponse{Cards: []cardJSON{}})
		return
	}

	resp := searchCardsResponse{Success: true, Cards: make([]cardJSON, 0, len(records))}
	for _, rec := range records {
		resp.Cards = append(resp.Cards, cardJSON{
			Name:            rec.Name,
			CollectorNumber: rec.CollectorNumber,
			SetCode:         rec.SetCode,
			SetName:         rec.SetName,
			IsTwoSided:      rec.IsTwoSided,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type queryCardResponse struct {
	Found           bool   `json:"found"`
	Name            string `json:"name,omitempty"`
	CollectorNumber string `json:"collector_number,omitempty"`
	SetCode         string `json:"set_code,omitempty"`
	ImagePath       string `json:"image_path,omitempty"`
	IsTwoSided      bool   `json:"is_two_sided"`
}

// handleQueryCard resolves one printing for the spawn modal's preview.
// An unknown printing is a normal answer, not an error status: the client
// keys off the found flag.
func (s *Server) handleQueryCard(w http.ResponseWriter, r *http.Request) {
	setCode := r.URL.Query().Get("set_code")
	collectorNumber := r.URL.Query().Get("collector_number")
	if setCode == "" || collectorNumber == "" {
		writeJSON(w, http.StatusBadRequest, queryCardResponse{})
		return
	}

	rec, err := s.cards.GetPrinting(r.Context(), setCode, collectorNumber)
	if errors.Is(err, repository.ErrCardNotFound) {
		writeJSON(w, http.StatusOK, queryCardResponse{})
		return
	}
	if err != nil {
		s.logger.Error("card query failed",
			zap.String("set_code", setCode),
			zap.String("collector_number", collectorNumber),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, queryCardResponse{})
		return
	}

	writeJSON(w, http.StatusOK, queryCardResponse{
		Found:           true,
		Name:            rec.Name,
		CollectorNumber: rec.CollectorNumber,
		SetCode:         rec.SetCode,
		ImagePath:       "/Sets/" + rec.SetCode + "/" + rec.SetCode + "/" + rec.CollectorNumber + ".jpg",
		IsTwoSided:      rec.IsTwoSided,
	})
}

type credentialsRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password,omitempty"`
}

type authResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	User    *user.User `json:"user,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	u, err := s.users.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, user.ErrUsernameTaken) {
		writeJSON(w, http.StatusConflict, authResponse{Message: "Username already taken"})
		return
	}
	if err != nil {
		s.logger.Error("registration failed", zap.String("username", req.Username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Registration failed"})
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Success: true, Message: "User created", User: &u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	u, err := s.users.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, authResponse{Message: "Invalid credentials"})
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "Login failed"})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Login successful", User: &u})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := s.users.ResetPassword(r.Context(), req.Username, req.NewPassword); err != nil {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "Password reset failed"})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true, Message: "Password reset"})
}

// uploadTargets maps the upload type field to the fixed file name inside
// the user's directory.
var uploadTargets = map[string]string{
	"profile-picture": "profile.jpg",
	"card-sleeve":     "sleeve.jpg",
	"playmat":         "playmat.jpg",
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.storage.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.storage.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "File size exceeds limit"})
		return
	}

	username := r.FormValue("username")
	targetName, validType := uploadTargets[r.FormValue("type")]
	file, header, err := r.FormFile("file")
	if username == "" || !validType || err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Missing required fields"})
		return
	}
	defer file.Close()

	name := strings.ToLower(header.Filename)
	if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Only JPG files are allowed"})
		return
	}

	dir := s.users.UserDir(username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Message: "Failed to create user directory"})
		return
	}

	dst, err := os.Create(filepath.Join(dir, targetName))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Message: "Failed to save file"})
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Message: "Failed to save file"})
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Message: "File uploaded successfully"})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "Invalid request"})
		return credentialsRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
