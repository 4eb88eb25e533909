package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"medichat/internal/entity"
	"medichat/internal/repository"
	"medichat/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type HttpHandler struct {
	convUc usecase.ConversationUsecase
	userUc usecase.UserUsecase
}

func NewHttpHandler(convUc usecase.ConversationUsecase, userUc usecase.UserUsecase) *HttpHandler {
	return &HttpHandler{
		convUc: convUc,
		userUc: userUc,
	}
}

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type sendMessageRequest struct {
	ToUserId string `json:"toUserId"`
	Text     string `json:"text"`
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type messagePageResponse struct {
	Messages []entity.Message `json:"messages"`
	PageInfo entity.PageInfo  `json:"pageInfo"`
}

// Method Post /messages
func (h *HttpHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	message, err := h.convUc.SendMessage(r.Context(), claims.UserId, req.ToUserId, req.Text)
	if err != nil {
		h.writeConversationError(w, "Send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{Message: "success", Data: message})
}

// Method Get /rooms
func (h *HttpHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	rooms, err := h.convUc.RoomList(r.Context(), claims.UserId)
	if err != nil {
		h.writeConversationError(w, "List rooms", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: rooms})
}

// Method Get /rooms/{roomId}/messages?pageSize=N&cursor=RFC3339
func (h *HttpHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "roomId")

	pageSize := 0
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, Response{Message: "invalid pageSize"})
			return
		}
		pageSize = n
	}

	var cursor entity.MessageCursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Message: "invalid cursor"})
			return
		}
		cursor.Timestamp = t
		cursor.Id = r.URL.Query().Get("cursorId")
	}

	messages, pageInfo, err := h.convUc.MessagePage(r.Context(), roomId, pageSize, cursor)
	if err != nil {
		h.writeConversationError(w, "Get messages", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Message: "success",
		Data:    messagePageResponse{Messages: messages, PageInfo: pageInfo},
	})
}

// Method Post /rooms/{roomId}/read
func (h *HttpHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	roomId := chi.URLParam(r, "roomId")

	if err := h.convUc.MarkRead(r.Context(), roomId, claims.UserId); err != nil {
		h.writeConversationError(w, "Mark read", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Put /rooms/{roomId}/messages/{messageId}
func (h *HttpHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	roomId := chi.URLParam(r, "roomId")
	messageId := chi.URLParam(r, "messageId")

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	if err := h.convUc.UpdateMessage(r.Context(), roomId, messageId, claims.UserId, req.Text); err != nil {
		h.writeConversationError(w, "Edit message", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Delete /rooms/{roomId}/messages/{messageId}
func (h *HttpHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	roomId := chi.URLParam(r, "roomId")
	messageId := chi.URLParam(r, "messageId")

	if err := h.convUc.DeleteMessage(r.Context(), roomId, messageId, claims.UserId); err != nil {
		h.writeConversationError(w, "Delete message", err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success"})
}

// Method Get /user/{id}
func (h *HttpHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "id")

	user, err := h.userUc.Get(r.Context(), userId)
	if err != nil {
		log.Printf("Get user error: %v", err)
		writeJSON(w, http.StatusNotFound, Response{Message: "user not found"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Message: "success", Data: user})
}

func (h *HttpHandler) writeConversationError(w http.ResponseWriter, op string, err error) {
	log.Printf("%s error: %v", op, err)

	statusCode := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, usecase.ErrEmptyMessage), errors.Is(err, usecase.ErrSelfConversation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, usecase.ErrNotSender):
		statusCode = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, usecase.ErrMessageDeleted):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	}

	writeJSON(w, statusCode, Response{Message: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
