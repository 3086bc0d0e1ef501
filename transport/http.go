// Package transport exposes the broker over HTTP: the JSON API used to
// authenticate and fetch history, and the WebSocket endpoint feeding
// the realtime broker.
package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"collab-hub/auth"
	apperrors "collab-hub/errors"
	"collab-hub/contract"
	"collab-hub/domain"
	"collab-hub/runtime"
	"collab-hub/services"
)

type Handler struct {
	log         *slog.Logger
	authService services.IAuthService
	chatService services.IChatService
	issuer      contract.TokenIssuer
	broker      *runtime.Broker
	sendBuffer  int
}

func NewHandler(log *slog.Logger, authService services.IAuthService, chatService services.IChatService,
	issuer contract.TokenIssuer, broker *runtime.Broker, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Handler{
		log:         log,
		authService: authService,
		chatService: chatService,
		issuer:      issuer,
		broker:      broker,
		sendBuffer:  sendBuffer,
	}
}

// Mux wires every route of the platform's messaging surface.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/ws-token", RequireAuth(h.handleWsToken))
	mux.HandleFunc("GET /api/messages", RequireAuth(h.handleGetMessages))
	mux.HandleFunc("POST /api/messages", RequireAuth(h.handlePostMessage))
	mux.HandleFunc("GET /ws", h.handleWebSocket)
	return mux
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.authService.Register(req)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleWsToken issues the short-lived single-use handshake token over
// the authenticated HTTP channel, never the socket.
func (h *Handler) handleWsToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	token, err := h.issuer.Issue(userID)
	if err != nil {
		h.log.Error("Handshake token issuance failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	channel, err := channelFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.chatService.GetMessages(channel)
	if err != nil {
		h.log.Error("Fetching messages failed", "channel", channel.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req struct {
		Content string `json:"content"`
		RoomID  *int   `json:"roomId"`
		GroupID *int   `json:"groupId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Invalid message data")
		return
	}

	channel, err := resolveChannel(req.RoomID, req.GroupID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.chatService.PostMessage(r.Context(), req.Content, userID, channel)
	if err != nil {
		h.log.Error("Posting message failed", "channel", channel.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create message")
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func channelFromQuery(r *http.Request) (domain.Channel, error) {
	var roomID, groupID *int
	if raw := r.URL.Query().Get("roomId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Channel{}, apperrors.ErrNoTarget
		}
		roomID = &id
	}
	if raw := r.URL.Query().Get("groupId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Channel{}, apperrors.ErrNoTarget
		}
		groupID = &id
	}
	return resolveChannel(roomID, groupID)
}

func resolveChannel(roomID, groupID *int) (domain.Channel, error) {
	switch {
	case roomID != nil && groupID != nil:
		return domain.Channel{}, apperrors.ErrAmbiguousTarget
	case roomID != nil:
		return domain.RoomChannel(*roomID), nil
	case groupID != nil:
		return domain.GroupChannel(*groupID), nil
	default:
		return domain.Channel{}, apperrors.ErrNoTarget
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
