package repository

import (
	"context"
	"log"
	"time"

	"medichat/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepository interface {
	// Append stores a new message, assigning its id and timestamp. The
	// timestamp is assigned here, on the service side, never taken from
	// the caller.
	Append(ctx context.Context, message entity.Message) (entity.Message, error)
	Get(ctx context.Context, messageId string) (entity.Message, error)
	// Page returns up to Limit messages of a room, newest first. When
	// Before is set only messages strictly older than it are considered.
	Page(ctx context.Context, filter entity.MessagePageFilter) ([]entity.Message, error)
	// CountUnread counts messages in a room sent by someone other than
	// userId with a timestamp strictly after the given time.
	CountUnread(ctx context.Context, roomId, userId string, after time.Time) (int64, error)
	SetText(ctx context.Context, roomId, messageId, text string) error
	// Tombstone replaces the text with entity.DeletedText and flags the
	// message deleted. The timestamp is left untouched.
	Tombstone(ctx context.Context, roomId, messageId string) error
	// Watch streams inserts and updates of one room's messages until
	// cancel is called. Delivery is best-effort: a consumer that falls
	// behind loses events and recovers by resubscribing.
	Watch(ctx context.Context, roomId string) (<-chan entity.Message, func(), error)
}

type messageRepository struct {
	db mongo.Database
}

func NewMessageRepository(db mongo.Database) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) Append(ctx context.Context, message entity.Message) (entity.Message, error) {
	collection := r.db.Collection("messages")
	message.Id = uuid.New().String()
	message.Timestamp = time.Now()
	message.Edited = false
	message.Deleted = false

	_, err := collection.InsertOne(ctx, message)
	if err != nil {
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Get(ctx context.Context, messageId string) (entity.Message, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId}

	var message entity.Message
	err := collection.FindOne(ctx, filter).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Message{}, ErrMessageNotFound
		}
		return entity.Message{}, err
	}

	return message, nil
}

func (r *messageRepository) Page(ctx context.Context, filter entity.MessagePageFilter) ([]entity.Message, error) {
	collection := r.db.Collection("messages")

	bsonFilter := bson.M{"roomId": filter.RoomId}
	if !filter.Before.IsZero() {
		if filter.Before.Id != "" {
			// The cursor cuts on (timestamp, id), matching the sort, so
			// messages sharing the boundary timestamp are not skipped.
			bsonFilter["$or"] = bson.A{
				bson.M{"timestamp": bson.M{"$lt": filter.Before.Timestamp}},
				bson.M{
					"timestamp": filter.Before.Timestamp,
					"_id":       bson.M{"$lt": filter.Before.Id},
				},
			}
		} else {
			bsonFilter["timestamp"] = bson.M{"$lt": filter.Before.Timestamp}
		}
	}

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	// Id as secondary key keeps the order stable under equal timestamps.
	opts.SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := collection.Find(ctx, bsonFilter, opts)
	if err != nil {
		return nil, err
	}

	var messages []entity.Message
	err = cursor.All(ctx, &messages)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, roomId, userId string, after time.Time) (int64, error) {
	collection := r.db.Collection("messages")
	filter := bson.M{
		"roomId":    roomId,
		"senderId":  bson.M{"$ne": userId},
		"timestamp": bson.M{"$gt": after},
	}

	return collection.CountDocuments(ctx, filter)
}

func (r *messageRepository) SetText(ctx context.Context, roomId, messageId, text string) error {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId, "roomId": roomId}

	update := bson.M{
		"$set": bson.M{
			"text":   text,
			"edited": true,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) Tombstone(ctx context.Context, roomId, messageId string) error {
	collection := r.db.Collection("messages")
	filter := bson.M{"_id": messageId, "roomId": roomId}

	update := bson.M{
		"$set": bson.M{
			"text":    entity.DeletedText,
			"deleted": true,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) Watch(ctx context.Context, roomId string) (<-chan entity.Message, func(), error) {
	collection := r.db.Collection("messages")

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType":       bson.M{"$in": bson.A{"insert", "update", "replace"}},
			"fullDocument.roomId": roomId,
		}}},
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := collection.Watch(watchCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan entity.Message, 64)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(watchCtx) {
			var event struct {
				FullDocument entity.Message `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				log.Printf("message watch decode error: %v", err)
				continue
			}
			select {
			case out <- event.FullDocument:
			default:
				log.Printf("message watch: dropping event for %s (slow consumer)", event.FullDocument.Id)
			}
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			log.Printf("message watch stream error: %v", err)
		}
	}()

	return out, cancel, nil
}
