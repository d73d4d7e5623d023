package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"concord/api/internal/search"
	"concord/api/internal/snowflake"
)

// Profile images are small; anything bigger than this is not a PNG avatar.
const maxProfileImageBytes = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NotReady", map[string]any{"database": err.Error()})
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Account routes, no session required
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		s.handleRegister(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	// Everything below requires a session
	credential := bearerToken(r)
	if credential == "" {
		writeError(w, errNoAuthToken.Status, errNoAuthToken.Code, nil)
		return
	}
	userID, token, err := s.service.Authenticate(r.Context(), credential)
	if err != nil {
		fail(w, err)
		return
	}

	parts := splitPath(r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout":
		s.handleLogout(w, r, token)
	case r.Method == http.MethodPut && r.URL.Path == "/api/auth/password":
		s.handleChangePassword(w, r, userID)
	case r.Method == http.MethodGet && r.URL.Path == "/api/guilds":
		s.handleJoinedGuilds(w, r, userID)
	case r.Method == http.MethodPost && r.URL.Path == "/api/guilds":
		s.handleCreateGuild(w, r, userID)
	case r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "guilds" && parts[3] == "join":
		s.handleJoinGuild(w, r, userID, parts[2])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "guilds" && parts[3] == "channels":
		s.handleListChannels(w, r, userID, parts[2])
	case r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "guilds" && parts[3] == "channels":
		s.handleCreateChannel(w, r, userID, parts[2])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "api" && parts[1] == "channels" && parts[3] == "messages":
		s.handleListMessages(w, r, userID, parts[2])
	case r.Method == http.MethodPost && len(parts) == 4 && parts[0] == "api" && parts[1] == "channels" && parts[3] == "messages":
		s.handleSendMessage(w, r, userID, parts[2])
	case r.Method == http.MethodGet && r.URL.Path == "/api/search":
		s.handleSearch(w, r, userID)
	case r.Method == http.MethodPut && r.URL.Path == "/api/users/me/pfp":
		s.handleSetProfileImage(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "RouteNotFound", nil)
	}
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	user, credential, err := s.service.Register(r.Context(), strings.TrimSpace(body.Username), strings.TrimSpace(body.Email), body.Password)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"user": user, "token": credential})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	credential, err := s.service.Login(r.Context(), strings.TrimSpace(body.Email), body.Password)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"token": credential})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, token int64) {
	if err := s.service.Logout(r.Context(), token); err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, userID snowflake.ID) {
	var body struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	credential, err := s.service.ChangePassword(r.Context(), userID, body.Current, body.New)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"token": credential})
}

func (s *HTTPServer) handleJoinedGuilds(w http.ResponseWriter, r *http.Request, userID snowflake.ID) {
	guilds, err := s.service.JoinedGuilds(r.Context(), userID)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, guilds)
}

func (s *HTTPServer) handleCreateGuild(w http.ResponseWriter, r *http.Request, userID snowflake.ID) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	guild, err := s.service.CreateGuild(r.Context(), userID, strings.TrimSpace(body.Name))
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, guild)
}

func (s *HTTPServer) handleJoinGuild(w http.ResponseWriter, r *http.Request, userID snowflake.ID, rawGuildID string) {
	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		fail(w, errGuildNotFound)
		return
	}
	if err := s.service.JoinGuild(r.Context(), userID, guildID); err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{})
}

func (s *HTTPServer) handleListChannels(w http.ResponseWriter, r *http.Request, userID snowflake.ID, rawGuildID string) {
	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		fail(w, errGuildNotFound)
		return
	}
	channels, err := s.service.Channels(r.Context(), userID, guildID)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, channels)
}

func (s *HTTPServer) handleCreateChannel(w http.ResponseWriter, r *http.Request, userID snowflake.ID, rawGuildID string) {
	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		fail(w, errGuildNotFound)
		return
	}
	var body struct {
		Name        string        `json:"name"`
		PlaceBefore *snowflake.ID `json:"place_before"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	channel, err := s.service.CreateChannel(r.Context(), userID, guildID, strings.TrimSpace(body.Name), body.PlaceBefore)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, channel)
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request, userID snowflake.ID, rawChannelID string) {
	channelID, err := snowflake.Parse(rawChannelID)
	if err != nil {
		fail(w, errChannelNotFound)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	messages, err := s.service.Messages(r.Context(), userID, channelID, limit, offset)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, messages)
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request, userID snowflake.ID, rawChannelID string) {
	channelID, err := snowflake.Parse(rawChannelID)
	if err != nil {
		fail(w, errChannelNotFound)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidBody", nil)
		return
	}
	message, err := s.service.SendMessage(r.Context(), userID, channelID, body.Content)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusCreated, message)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, userID snowflake.ID) {
	query := r.URL.Query()
	q := search.Query{
		Text:            query.Get("q"),
		FilterGuildID:   query.Get("guild"),
		FilterChannelID: query.Get("channel"),
		Limit:           int(queryInt(r, "limit", 20)),
		Offset:          int(queryInt(r, "offset", 0)),
	}
	response, err := s.service.SearchMessages(r.Context(), userID, q)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, response)
}

func (s *HTTPServer) handleSetProfileImage(w http.ResponseWriter, r *http.Request, userID snowflake.ID) {
	body := http.MaxBytesReader(w, r.Body, maxProfileImageBytes)
	defer body.Close()

	imageID, err := s.service.SetProfileImage(r.Context(), userID, body, r.ContentLength)
	if err != nil {
		fail(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"profile_img_id": imageID})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"error": false, "data": data})
}

func writeError(w http.ResponseWriter, status int, code string, data any) {
	payload := map[string]any{"error": true, "code": code}
	if data != nil {
		payload["data"] = data
	}
	writeJSON(w, status, payload)
}

func fail(w http.ResponseWriter, err error) {
	status, code, data := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %v", err)
	}
	writeError(w, status, code, data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
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

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
