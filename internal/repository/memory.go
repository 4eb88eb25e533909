package repository

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"medichat/internal/entity"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of RoomRepository and
// MessageRepository with the same watch semantics as the Mongo versions.
// It backs the tests.
type MemoryStore struct {
	mu        sync.RWMutex
	rooms     map[string]entity.Room
	messages  map[string]entity.Message
	lastStamp time.Time

	nextSub  int
	roomSubs map[int]chan entity.Room
	msgSubs  map[int]*messageSub
}

type messageSub struct {
	roomId string
	ch     chan entity.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]entity.Room),
		messages: make(map[string]entity.Message),
		roomSubs: make(map[int]chan entity.Room),
		msgSubs:  make(map[int]*messageSub),
	}
}

func (s *MemoryStore) Rooms() RoomRepository {
	return &memoryRooms{store: s}
}

func (s *MemoryStore) Messages() MessageRepository {
	return &memoryMessages{store: s}
}

// stamp returns a strictly increasing wall-clock time. Callers must hold
// the write lock.
func (s *MemoryStore) stamp() time.Time {
	now := time.Now()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func (s *MemoryStore) notifyRoom(room entity.Room) {
	for _, ch := range s.roomSubs {
		select {
		case ch <- copyRoom(room):
		default:
			log.Printf("room watch: dropping event for %s (slow consumer)", room.Id)
		}
	}
}

func (s *MemoryStore) notifyMessage(message entity.Message) {
	for _, sub := range s.msgSubs {
		if sub.roomId != message.RoomId {
			continue
		}
		select {
		case sub.ch <- message:
		default:
			log.Printf("message watch: dropping event for %s (slow consumer)", message.Id)
		}
	}
}

func copyRoom(room entity.Room) entity.Room {
	out := room
	out.Participants = append([]string(nil), room.Participants...)
	out.LastRead = make(map[string]time.Time, len(room.LastRead))
	for uid, at := range room.LastRead {
		out.LastRead[uid] = at
	}
	return out
}

type memoryRooms struct {
	store *MemoryStore
}

func (r *memoryRooms) Get(ctx context.Context, roomId string) (entity.Room, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	room, ok := r.store.rooms[roomId]
	if !ok {
		return entity.Room{}, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (r *memoryRooms) Upsert(ctx context.Context, room entity.Room) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.rooms[room.Id]
	if !ok {
		existing = entity.Room{
			Id:        room.Id,
			CreatedAt: r.store.stamp(),
			LastRead:  make(map[string]time.Time),
		}
	}
	existing.Participants = append([]string(nil), room.Participants...)
	r.store.rooms[room.Id] = existing
	r.store.notifyRoom(existing)
	return nil
}

func (r *memoryRooms) SetLastMessage(ctx context.Context, roomId string, last entity.LastMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	room, ok := r.store.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	room.LastMessage = last
	r.store.rooms[roomId] = room
	r.store.notifyRoom(room)
	return nil
}

func (r *memoryRooms) SetLastRead(ctx context.Context, roomId, userId string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	room, ok := r.store.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	if room.LastRead == nil {
		room.LastRead = make(map[string]time.Time)
	}
	if at.After(room.LastRead[userId]) {
		room.LastRead[userId] = at
	}
	r.store.rooms[roomId] = room
	r.store.notifyRoom(room)
	return nil
}

func (r *memoryRooms) IndexByUser(ctx context.Context, userId string) ([]entity.Room, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var rooms []entity.Room
	for _, room := range r.store.rooms {
		if room.HasParticipant(userId) {
			rooms = append(rooms, copyRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessage.Timestamp.After(rooms[j].LastMessage.Timestamp)
	})
	return rooms, nil
}

func (r *memoryRooms) Watch(ctx context.Context) (<-chan entity.Room, func(), error) {
	r.store.mu.Lock()
	id := r.store.nextSub
	r.store.nextSub++
	ch := make(chan entity.Room, 64)
	r.store.roomSubs[id] = ch
	r.store.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.store.mu.Lock()
			delete(r.store.roomSubs, id)
			r.store.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

type memoryMessages struct {
	store *MemoryStore
}

func (r *memoryMessages) Append(ctx context.Context, message entity.Message) (entity.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	message.Id = uuid.New().String()
	message.Timestamp = r.store.stamp()
	message.Edited = false
	message.Deleted = false

	r.store.messages[message.Id] = message
	r.store.notifyMessage(message)
	return message, nil
}

func (r *memoryMessages) Get(ctx context.Context, messageId string) (entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	message, ok := r.store.messages[messageId]
	if !ok {
		return entity.Message{}, ErrMessageNotFound
	}
	return message, nil
}

func (r *memoryMessages) Page(ctx context.Context, filter entity.MessagePageFilter) ([]entity.Message, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var messages []entity.Message
	for _, message := range r.store.messages {
		if message.RoomId != filter.RoomId {
			continue
		}
		if !filter.Before.IsZero() && !beforeCursor(message, filter.Before) {
			continue
		}
		messages = append(messages, message)
	}

	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].Timestamp.After(messages[j].Timestamp)
		}
		return messages[i].Id > messages[j].Id
	})

	if filter.Limit > 0 && len(messages) > filter.Limit {
		messages = messages[:filter.Limit]
	}
	return messages, nil
}

// beforeCursor reports whether message sits strictly before the cursor
// position in descending (timestamp, id) order.
func beforeCursor(message entity.Message, cursor entity.MessageCursor) bool {
	if message.Timestamp.Before(cursor.Timestamp) {
		return true
	}
	if cursor.Id != "" && message.Timestamp.Equal(cursor.Timestamp) {
		return message.Id < cursor.Id
	}
	return false
}

func (r *memoryMessages) CountUnread(ctx context.Context, roomId, userId string, after time.Time) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var count int64
	for _, message := range r.store.messages {
		if message.RoomId != roomId || message.SenderId == userId {
			continue
		}
		if message.Timestamp.After(after) {
			count++
		}
	}
	return count, nil
}

func (r *memoryMessages) SetText(ctx context.Context, roomId, messageId, text string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	message, ok := r.store.messages[messageId]
	if !ok || message.RoomId != roomId {
		return ErrMessageNotFound
	}
	message.Text = text
	message.Edited = true
	r.store.messages[messageId] = message
	r.store.notifyMessage(message)
	return nil
}

func (r *memoryMessages) Tombstone(ctx context.Context, roomId, messageId string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	message, ok := r.store.messages[messageId]
	if !ok || message.RoomId != roomId {
		return ErrMessageNotFound
	}
	message.Text = entity.DeletedText
	message.Deleted = true
	r.store.messages[messageId] = message
	r.store.notifyMessage(message)
	return nil
}

func (r *memoryMessages) Watch(ctx context.Context, roomId string) (<-chan entity.Message, func(), error) {
	r.store.mu.Lock()
	id := r.store.nextSub
	r.store.nextSub++
	sub := &messageSub{roomId: roomId, ch: make(chan entity.Message, 64)}
	r.store.msgSubs[id] = sub
	r.store.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.store.mu.Lock()
			delete(r.store.msgSubs, id)
			r.store.mu.Unlock()
			close(sub.ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return sub.ch, cancel, nil
}
