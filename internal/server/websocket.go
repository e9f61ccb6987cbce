package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/franckalain/grpmnutrition/internal/models"
	"github.com/franckalain/grpmnutrition/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client message types.
const (
	msgRegister    = "register"
	msgLogin       = "login"
	msgResume      = "resume"
	msgLogout      = "logout"
	msgSaveProfile = "save_profile"
	msgLoadProfile = "load_profile"
	msgEvaluate    = "evaluate"
	msgPreview     = "preview"
	msgGetLatest   = "get_latest"
	msgGetHistory  = "get_history"
	msgGetPlan     = "get_plan"
	msgDeleteAll   = "delete_all"
)

const errNotLoggedIn = "Please log in first."

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// session is one websocket connection and the user it is logged in as.
type session struct {
	id   string
	conn *websocket.Conn

	mu       sync.Mutex // guards username and writes to conn
	username string
}

func (s *session) user() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *session) setUser(username string) {
	s.mu.Lock()
	s.username = username
	s.mu.Unlock()
}

func (s *session) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	_ = s.conn.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &session{id: uuid.New().String(), conn: conn}
	s.clients.Store(sess.id, sess)
	defer s.clients.Delete(sess.id)

	logger := s.logger.With("client", sess.id)
	logger.Debug("client connected", "remote", r.RemoteAddr)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("error reading message", "error", err)
			}
			break
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Debug("error parsing message", "error", err)
			s.sendError(sess, "Invalid message format")
			continue
		}

		s.handleWebSocketMessage(r.Context(), logger, sess, msg)
	}
	logger.Debug("client disconnected")
}

func (s *Server) handleWebSocketMessage(ctx context.Context, logger *slog.Logger, sess *session, msg envelope) {
	logger.Debug("message received", "type", msg.Type, "user", sess.user())

	switch msg.Type {
	case msgRegister:
		s.handleRegister(ctx, sess, msg.Data)
	case msgLogin:
		s.handleLogin(ctx, sess, msg.Data)
	case msgResume:
		s.handleResume(ctx, sess, msg.Data)
	case msgLogout:
		sess.setUser("")
		s.sendMessage(sess, "logged_out", nil)
	case msgDeleteAll:
		s.handleDeleteAll(ctx, sess)
	case msgSaveProfile, msgLoadProfile, msgEvaluate, msgPreview, msgGetLatest, msgGetHistory, msgGetPlan:
		username := sess.user()
		if username == "" {
			s.sendError(sess, errNotLoggedIn)
			return
		}
		s.handleUserMessage(ctx, sess, username, msg)
	default:
		s.sendError(sess, "Unknown message type")
	}
}

func (s *Server) handleUserMessage(ctx context.Context, sess *session, username string, msg envelope) {
	switch msg.Type {
	case msgSaveProfile:
		s.handleSaveProfile(ctx, sess, username, msg.Data)
	case msgLoadProfile:
		s.handleLoadProfile(ctx, sess, username)
	case msgEvaluate:
		s.handleEvaluate(ctx, sess, username, msg.Data, true)
	case msgPreview:
		s.handleEvaluate(ctx, sess, username, msg.Data, false)
	case msgGetLatest:
		s.handleGetLatest(ctx, sess, username)
	case msgGetHistory:
		s.handleGetHistory(ctx, sess, username, msg.Data)
	case msgGetPlan:
		s.handleGetPlan(ctx, sess, username)
	}
}

type credentialsRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Server) handleRegister(ctx context.Context, sess *session, data json.RawMessage) {
	var req credentialsRequest
	if !s.decode(sess, data, &req) {
		return
	}
	st := s.tracker.Register(ctx, req.Username, req.Password, req.ConfirmPassword)
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "registered", map[string]any{"username": req.Username})
}

func (s *Server) handleLogin(ctx context.Context, sess *session, data json.RawMessage) {
	var req credentialsRequest
	if !s.decode(sess, data, &req) {
		return
	}
	token, st := s.tracker.Login(ctx, req.Username, req.Password)
	if !st.OK {
		sess.setUser("")
		s.sendError(sess, st.Reason)
		return
	}
	sess.setUser(req.Username)
	s.sendMessage(sess, "logged_in", map[string]any{"username": req.Username, "token": token})
}

func (s *Server) handleResume(ctx context.Context, sess *session, data json.RawMessage) {
	var req struct {
		Token string `json:"token"`
	}
	if !s.decode(sess, data, &req) {
		return
	}
	username, st := s.tracker.Resume(ctx, req.Token)
	if !st.OK {
		sess.setUser("")
		s.sendError(sess, st.Reason)
		return
	}
	sess.setUser(username)
	s.sendMessage(sess, "logged_in", map[string]any{"username": username, "token": req.Token})
}

func (s *Server) handleSaveProfile(ctx context.Context, sess *session, username string, data json.RawMessage) {
	var p models.Profile
	if !s.decode(sess, data, &p) {
		return
	}
	if st := s.tracker.SaveProfile(ctx, username, p); !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "profile_saved", nil)
}

func (s *Server) handleLoadProfile(ctx context.Context, sess *session, username string) {
	p, found, st := s.tracker.LoadProfile(ctx, username)
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "profile", map[string]any{"profile": p, "found": found})
}

type mealInput struct {
	Name      string   `json:"name"`
	Items     []string `json:"items"`
	ItemsText string   `json:"items_text"` // comma separated alternative to items
	Calories  float64  `json:"calories"`
}

type evaluateRequest struct {
	Date  string      `json:"date"`
	Meals []mealInput `json:"meals"`
}

func (r evaluateRequest) entries() []models.MealEntry {
	out := make([]models.MealEntry, 0, len(r.Meals))
	for _, m := range r.Meals {
		items := m.Items
		if len(items) == 0 && m.ItemsText != "" {
			items = service.SplitItems(m.ItemsText)
		}
		out = append(out, models.MealEntry{Name: m.Name, Items: items, Calories: m.Calories})
	}
	return out
}

func (s *Server) handleEvaluate(ctx context.Context, sess *session, username string, data json.RawMessage, save bool) {
	var req evaluateRequest
	if !s.decode(sess, data, &req) {
		return
	}

	if !save {
		eval, st := s.tracker.Evaluate(ctx, username, req.entries())
		if !st.OK {
			s.sendError(sess, st.Reason)
			return
		}
		s.sendMessage(sess, "evaluation", eval)
		return
	}

	res, st := s.tracker.EvaluateAndSave(ctx, username, req.Date, req.entries())
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "log_saved", res)
}

func (s *Server) handleGetLatest(ctx context.Context, sess *session, username string) {
	latest, st := s.tracker.Latest(ctx, username)
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "latest", map[string]any{"log": latest})
}

func (s *Server) handleGetHistory(ctx context.Context, sess *session, username string, data json.RawMessage) {
	var req struct {
		Limit int `json:"limit"`
	}
	if !s.decode(sess, data, &req) {
		return
	}
	logs, st := s.tracker.History(ctx, username, req.Limit)
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "history", map[string]any{"items": logs, "count": len(logs)})
}

func (s *Server) handleGetPlan(ctx context.Context, sess *session, username string) {
	p, st := s.tracker.Plan(ctx, username)
	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "plan", p)
}

// handleDeleteAll wipes every store and logs out every connected client.
func (s *Server) handleDeleteAll(ctx context.Context, sess *session) {
	if sess.user() == "" {
		s.sendError(sess, errNotLoggedIn)
		return
	}

	st := s.tracker.DeleteAllData(ctx)

	s.clients.Range(func(_, value any) bool {
		value.(*session).setUser("")
		return true
	})

	if !st.OK {
		s.sendError(sess, st.Reason)
		return
	}
	s.sendMessage(sess, "data_deleted", nil)
}

// decode unmarshals a message payload. An absent payload decodes as empty.
func (s *Server) decode(sess *session, data json.RawMessage, v any) bool {
	if len(data) == 0 || string(data) == "null" {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.sendError(sess, "Invalid message data")
		return false
	}
	return true
}

func (s *Server) sendMessage(sess *session, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if err := sess.writeJSON(msg); err != nil {
		s.logger.Warn("error sending message", "client", sess.id, "type", messageType, "error", err)
	}
}

func (s *Server) sendError(sess *session, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}

	if err := sess.writeJSON(msg); err != nil {
		s.logger.Warn("error sending error message", "client", sess.id, "error", err)
	}
}
