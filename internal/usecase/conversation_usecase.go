package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"medichat/infrastructure/cache"
	"medichat/internal/entity"
	"medichat/internal/repository"
)

var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")
	ErrNotSender        = errors.New("only the sender can modify this message")
	ErrMessageDeleted   = errors.New("message has been deleted")
)

const (
	defaultPageSize  = 50
	senderNameTTL    = 5 * time.Minute
	senderNamePrefix = "name:"
)

type ConversationUsecase interface {
	// SendMessage appends a message to the conversation between sender and
	// recipient, creating the room on first contact. The room metadata
	// update after the append is best-effort: the message is already
	// persisted, and a later send or mark-read repairs the room document.
	SendMessage(ctx context.Context, senderId, recipientId, text string) (entity.Message, error)

	// SubscribeRoomList delivers the user's room list with unread counts,
	// once immediately and again after every change to one of the user's
	// rooms. The returned func cancels the subscription.
	SubscribeRoomList(ctx context.Context, userId string, onChange func([]entity.RoomSummary)) (func(), error)

	// SubscribeMessages delivers one page of a room's messages and keeps it
	// live. With a zero cursor it covers the newest page and absorbs new
	// messages; with a cursor it covers one older page, in which messages
	// still update in place on edit or delete. onPage fires once with the
	// pagination outcome; onChange fires with the full window, in
	// chronological order, on every change.
	SubscribeMessages(ctx context.Context, roomId string, pageSize int, cursor entity.MessageCursor, onChange func([]entity.Message), onPage func(entity.PageInfo)) (func(), error)

	// MarkRead moves the user's read receipt to now. A missing room is a
	// benign race and not an error.
	MarkRead(ctx context.Context, roomId, userId string) error

	UpdateMessage(ctx context.Context, roomId, messageId, actorId, text string) error
	DeleteMessage(ctx context.Context, roomId, messageId, actorId string) error

	// One-shot variants of the two subscriptions, for the HTTP surface.
	RoomList(ctx context.Context, userId string) ([]entity.RoomSummary, error)
	MessagePage(ctx context.Context, roomId string, pageSize int, cursor entity.MessageCursor) ([]entity.Message, entity.PageInfo, error)
}

type conversationUsecase struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	names       *cache.MemCache
}

func NewConversationUsecase(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	names *cache.MemCache,
) ConversationUsecase {
	return &conversationUsecase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		names:       names,
	}
}

func (c *conversationUsecase) SendMessage(ctx context.Context, senderId, recipientId, text string) (entity.Message, error) {
	if text == "" {
		return entity.Message{}, ErrEmptyMessage
	}
	if senderId == recipientId {
		return entity.Message{}, ErrSelfConversation
	}

	senderName, err := c.displayName(ctx, senderId)
	if err != nil {
		return entity.Message{}, err
	}
	if _, err := c.displayName(ctx, recipientId); err != nil {
		return entity.Message{}, err
	}

	roomId := entity.RoomID(senderId, recipientId)
	participants := []string{senderId, recipientId}
	sort.Strings(participants)
	room := entity.Room{
		Id:           roomId,
		Participants: participants,
	}
	if err := c.roomRepo.Upsert(ctx, room); err != nil {
		return entity.Message{}, fmt.Errorf("upsert room: %w", err)
	}

	message, err := c.messageRepo.Append(ctx, entity.Message{
		RoomId:     roomId,
		SenderId:   senderId,
		SenderName: senderName,
		Text:       text,
	})
	if err != nil {
		return entity.Message{}, fmt.Errorf("append message: %w", err)
	}

	last := entity.LastMessage{
		Text:      message.Text,
		SenderId:  senderId,
		Timestamp: message.Timestamp,
	}
	if err := c.roomRepo.SetLastMessage(ctx, roomId, last); err != nil {
		log.Printf("SendMessage: last message update failed for room %s: %v", roomId, err)
	}
	// The sender has read everything up to their own message.
	if err := c.roomRepo.SetLastRead(ctx, roomId, senderId, message.Timestamp); err != nil {
		log.Printf("SendMessage: read receipt update failed for room %s: %v", roomId, err)
	}

	return message, nil
}

func (c *conversationUsecase) SubscribeRoomList(ctx context.Context, userId string, onChange func([]entity.RoomSummary)) (func(), error) {
	events, cancel, err := c.roomRepo.Watch(ctx)
	if err != nil {
		return nil, err
	}

	list, err := c.RoomList(ctx, userId)
	if err != nil {
		cancel()
		return nil, err
	}
	onChange(list)

	go func() {
		for room := range events {
			if !room.HasParticipant(userId) {
				continue
			}
			list, err := c.RoomList(ctx, userId)
			if err != nil {
				log.Printf("SubscribeRoomList: recompute failed for user %s: %v", userId, err)
				continue
			}
			onChange(list)
		}
	}()

	return cancel, nil
}

func (c *conversationUsecase) SubscribeMessages(ctx context.Context, roomId string, pageSize int, cursor entity.MessageCursor, onChange func([]entity.Message), onPage func(entity.PageInfo)) (func(), error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	// Watch before fetching so nothing lands between page and stream.
	events, cancel, err := c.messageRepo.Watch(ctx, roomId)
	if err != nil {
		return nil, err
	}

	fetched, err := c.messageRepo.Page(ctx, entity.MessagePageFilter{
		RoomId: roomId,
		Limit:  pageSize + 1,
		Before: cursor,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	feed := NewFeed(cursor)
	info := feed.LoadPage(fetched, pageSize)
	if onPage != nil {
		onPage(info)
	}
	onChange(feed.Messages())

	go func() {
		for message := range events {
			if feed.Apply(message) {
				onChange(feed.Messages())
			}
		}
	}()

	return cancel, nil
}

func (c *conversationUsecase) MarkRead(ctx context.Context, roomId, userId string) error {
	err := c.roomRepo.SetLastRead(ctx, roomId, userId, time.Now())
	if errors.Is(err, repository.ErrRoomNotFound) {
		// Nothing was ever sent here, so there is nothing to mark.
		return nil
	}
	return err
}

func (c *conversationUsecase) UpdateMessage(ctx context.Context, roomId, messageId, actorId, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	message, err := c.messageRepo.Get(ctx, messageId)
	if err != nil {
		return err
	}
	if message.RoomId != roomId {
		return repository.ErrMessageNotFound
	}
	if message.SenderId != actorId {
		return ErrNotSender
	}
	if message.Deleted {
		return ErrMessageDeleted
	}

	return c.messageRepo.SetText(ctx, roomId, messageId, text)
}

func (c *conversationUsecase) DeleteMessage(ctx context.Context, roomId, messageId, actorId string) error {
	message, err := c.messageRepo.Get(ctx, messageId)
	if err != nil {
		return err
	}
	if message.RoomId != roomId {
		return repository.ErrMessageNotFound
	}
	if message.SenderId != actorId {
		return ErrNotSender
	}

	return c.messageRepo.Tombstone(ctx, roomId, messageId)
}

func (c *conversationUsecase) RoomList(ctx context.Context, userId string) ([]entity.RoomSummary, error) {
	rooms, err := c.roomRepo.IndexByUser(ctx, userId)
	if err != nil {
		return nil, err
	}

	summaries := make([]entity.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		unread, err := c.messageRepo.CountUnread(ctx, room.Id, userId, room.ReadUpTo(userId))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, entity.RoomSummary{
			Room:        room,
			OtherUserId: room.Other(userId),
			UnreadCount: unread,
		})
	}

	return summaries, nil
}

func (c *conversationUsecase) MessagePage(ctx context.Context, roomId string, pageSize int, cursor entity.MessageCursor) ([]entity.Message, entity.PageInfo, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	fetched, err := c.messageRepo.Page(ctx, entity.MessagePageFilter{
		RoomId: roomId,
		Limit:  pageSize + 1,
		Before: cursor,
	})
	if err != nil {
		return nil, entity.PageInfo{}, err
	}

	feed := NewFeed(cursor)
	info := feed.LoadPage(fetched, pageSize)
	return feed.Messages(), info, nil
}

// displayName resolves a user's name through the TTL cache, so the send
// path does not hit the user collection on every message.
func (c *conversationUsecase) displayName(ctx context.Context, userId string) (string, error) {
	if c.names != nil {
		if v, ok := c.names.Get(senderNamePrefix + userId); ok {
			return v.(string), nil
		}
	}

	user, err := c.userRepo.Get(ctx, userId)
	if err != nil {
		return "", err
	}
	if c.names != nil {
		c.names.Set(senderNamePrefix+userId, user.Name, senderNameTTL)
	}
	return user.Name, nil
}
