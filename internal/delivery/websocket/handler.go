package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"medichat/infrastructure/ws"
	"medichat/internal/entity"
	"medichat/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebsocketHandler struct {
	hub    ws.IHub
	userUc usecase.UserUsecase
	convUc usecase.ConversationUsecase
}

func NewWebsocketHandler(hub ws.IHub, userUc usecase.UserUsecase, convUc usecase.ConversationUsecase) *WebsocketHandler {
	return &WebsocketHandler{
		hub:    hub,
		userUc: userUc,
		convUc: convUc,
	}
}

// session is the per-connection state: the subscriptions this connection
// holds open. Every one of them must be cancelled when the connection goes
// away, or the watch keeps delivering into a dead socket.
type session struct {
	handler *WebsocketHandler
	client  *ws.UserClient

	mu      sync.Mutex
	subs    map[string]func()
	nextSub int
	closed  bool
}

func (h *WebsocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userId := chi.URLParam(r, "userId")
	if userId == "" {
		http.Error(w, "Missing user ID", http.StatusBadRequest)
		return
	}

	user, err := h.userUc.Get(ctx, userId)
	if err != nil {
		log.Printf("Get user error: %v", err)
		http.Error(w, "Unknown user", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}

	if err := h.userUc.SetOnline(context.Background(), user.Id, true); err != nil {
		log.Printf("Set online error: %v", err)
	}

	client := ws.NewClient(user.Id, conn)
	h.hub.RegisterClient(client)

	sess := &session{
		handler: h,
		client:  client,
		subs:    make(map[string]func()),
	}

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		sess.handleCommand(data)
	})

	// ReadPump returned: the connection is gone. Cancel this
	// connection's subscriptions before the hub closes the delivery
	// queue, so watch callbacks stop feeding a dead socket.
	sess.close()
	h.hub.UnregisterClient(client)
}

func (h *WebsocketHandler) HandleUnregisterClient(client *ws.UserClient) error {
	return h.userUc.SetOnline(context.Background(), client.UserId, false)
}

func (s *session) handleCommand(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Printf("Unknown command from %s: %v", s.client.UserId, err)
		s.sendError("", "invalid command")
		return
	}

	switch cmd.Type {
	case CmdSubscribeRooms:
		s.subscribeRooms(cmd)
	case CmdSubscribeMessages:
		s.subscribeMessages(cmd)
	case CmdUnsubscribe:
		s.unsubscribe(cmd)
	case CmdSend:
		s.send(cmd)
	case CmdMarkRead:
		s.markRead(cmd)
	case CmdEdit:
		s.edit(cmd)
	case CmdDelete:
		s.delete(cmd)
	default:
		s.sendError(cmd.Type, "unknown command type")
	}
}

func (s *session) subscribeRooms(cmd Command) {
	subId := s.newSubId()

	cancel, err := s.handler.convUc.SubscribeRoomList(context.Background(), s.client.UserId, func(rooms []entity.RoomSummary) {
		s.push(RoomsEvent{Type: "rooms", SubId: subId, Rooms: rooms})
	})
	if err != nil {
		log.Printf("Subscribe rooms error for %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, "subscription failed")
		return
	}

	if !s.track(subId, cancel) {
		cancel()
	}
}

func (s *session) subscribeMessages(cmd Command) {
	if cmd.RoomId == "" {
		s.sendError(cmd.Type, "roomId is required")
		return
	}

	subId := s.newSubId()

	cursor := entity.MessageCursor{Timestamp: cmd.Cursor, Id: cmd.CursorId}
	cancel, err := s.handler.convUc.SubscribeMessages(context.Background(), cmd.RoomId, cmd.PageSize, cursor,
		func(messages []entity.Message) {
			s.push(MessagesEvent{Type: "messages", SubId: subId, RoomId: cmd.RoomId, Messages: messages})
		},
		func(info entity.PageInfo) {
			s.push(PageEvent{Type: "page", SubId: subId, RoomId: cmd.RoomId, PageInfo: info})
		},
	)
	if err != nil {
		log.Printf("Subscribe messages error for %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, "subscription failed")
		return
	}

	if !s.track(subId, cancel) {
		cancel()
	}
}

func (s *session) unsubscribe(cmd Command) {
	s.mu.Lock()
	cancel, ok := s.subs[cmd.SubId]
	if ok {
		delete(s.subs, cmd.SubId)
	}
	s.mu.Unlock()

	if ok {
		cancel()
		s.push(AckEvent{Type: "ack", Of: cmd.Type, SubId: cmd.SubId})
	}
}

func (s *session) send(cmd Command) {
	message, err := s.handler.convUc.SendMessage(context.Background(), s.client.UserId, cmd.ToUserId, cmd.Text)
	if err != nil {
		log.Printf("Send message error from %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, err.Error())
		return
	}

	// Nudge the recipient even when they have no feed subscription open.
	event, err := json.Marshal(NewMessageEvent{Type: "message:new", Message: message})
	if err != nil {
		log.Printf("Marshal event error: %v", err)
		return
	}
	s.handler.hub.SendToUser(cmd.ToUserId, event)
}

func (s *session) markRead(cmd Command) {
	if err := s.handler.convUc.MarkRead(context.Background(), cmd.RoomId, s.client.UserId); err != nil {
		log.Printf("Mark read error from %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, "mark read failed")
		return
	}
	s.push(AckEvent{Type: "ack", Of: cmd.Type})
}

func (s *session) edit(cmd Command) {
	if err := s.handler.convUc.UpdateMessage(context.Background(), cmd.RoomId, cmd.MessageId, s.client.UserId, cmd.Text); err != nil {
		log.Printf("Edit message error from %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, err.Error())
		return
	}
	s.push(AckEvent{Type: "ack", Of: cmd.Type})
}

func (s *session) delete(cmd Command) {
	if err := s.handler.convUc.DeleteMessage(context.Background(), cmd.RoomId, cmd.MessageId, s.client.UserId); err != nil {
		log.Printf("Delete message error from %s: %v", s.client.UserId, err)
		s.sendError(cmd.Type, err.Error())
		return
	}
	s.push(AckEvent{Type: "ack", Of: cmd.Type})
}

func (s *session) newSubId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	return "s" + strconv.Itoa(s.nextSub)
}

// track registers a cancel func under subId; it reports false when the
// session already closed, in which case the caller must cancel itself.
func (s *session) track(subId string, cancel func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.subs[subId] = cancel
	return true
}

func (s *session) close() {
	s.mu.Lock()
	s.closed = true
	subs := s.subs
	s.subs = make(map[string]func())
	s.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
}

func (s *session) push(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Marshal event error: %v", err)
		return
	}
	if !s.client.Send(payload) {
		log.Printf("Dropping event for %s (send buffer full)", s.client.UserId)
	}
}

func (s *session) sendError(of, message string) {
	s.push(ErrorEvent{Type: "error", Of: of, Message: message})
}
