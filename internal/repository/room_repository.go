package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"medichat/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
)

type RoomRepository interface {
	Get(ctx context.Context, roomId string) (entity.Room, error)
	// Upsert creates the room if missing. On an existing room only the
	// participant set is re-asserted; createdAt, lastRead and lastMessage
	// are never overwritten by an upsert.
	Upsert(ctx context.Context, room entity.Room) error
	SetLastMessage(ctx context.Context, roomId string, last entity.LastMessage) error
	// SetLastRead records a user's read receipt. The stored value never
	// decreases: an older timestamp than the current receipt is ignored.
	SetLastRead(ctx context.Context, roomId, userId string, at time.Time) error
	IndexByUser(ctx context.Context, userId string) ([]entity.Room, error)
	// Watch streams every room document change until cancel is called.
	// Delivery is best-effort: a consumer that falls behind loses events
	// and recovers by resubscribing.
	Watch(ctx context.Context) (<-chan entity.Room, func(), error)
}

type roomRepository struct {
	db mongo.Database
}

func NewRoomRepository(db mongo.Database) RoomRepository {
	return &roomRepository{
		db: db,
	}
}

func (r *roomRepository) Get(ctx context.Context, roomId string) (entity.Room, error) {
	collection := r.db.Collection("rooms")
	filter := bson.M{"_id": roomId}

	var room entity.Room
	err := collection.FindOne(ctx, filter).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.Room{}, ErrRoomNotFound
		}
		return entity.Room{}, err
	}

	return room, nil
}

func (r *roomRepository) Upsert(ctx context.Context, room entity.Room) error {
	collection := r.db.Collection("rooms")
	filter := bson.M{"_id": room.Id}

	update := bson.M{
		"$set": bson.M{
			"participants": room.Participants,
		},
		"$setOnInsert": bson.M{
			"createdAt": time.Now(),
			"lastRead":  bson.M{},
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *roomRepository) SetLastMessage(ctx context.Context, roomId string, last entity.LastMessage) error {
	collection := r.db.Collection("rooms")
	filter := bson.M{"_id": roomId}

	update := bson.M{
		"$set": bson.M{
			"lastMessage": last,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *roomRepository) SetLastRead(ctx context.Context, roomId, userId string, at time.Time) error {
	collection := r.db.Collection("rooms")
	filter := bson.M{"_id": roomId}

	// $max keeps the receipt monotonic under races.
	update := bson.M{
		"$max": bson.M{
			"lastRead." + userId: at,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *roomRepository) IndexByUser(ctx context.Context, userId string) ([]entity.Room, error) {
	collection := r.db.Collection("rooms")
	filter := bson.M{"participants": userId}

	opts := options.Find().SetSort(bson.D{{Key: "lastMessage.timestamp", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var rooms []entity.Room
	err = cursor.All(ctx, &rooms)
	if err != nil {
		return nil, err
	}

	return rooms, nil
}

func (r *roomRepository) Watch(ctx context.Context) (<-chan entity.Room, func(), error) {
	collection := r.db.Collection("rooms")

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := collection.Watch(watchCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	out := make(chan entity.Room, 64)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(watchCtx) {
			var event struct {
				FullDocument entity.Room `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				log.Printf("room watch decode error: %v", err)
				continue
			}
			select {
			case out <- event.FullDocument:
			default:
				log.Printf("room watch: dropping event for %s (slow consumer)", event.FullDocument.Id)
			}
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			log.Printf("room watch stream error: %v", err)
		}
	}()

	return out, cancel, nil
}
