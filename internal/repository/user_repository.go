package repository

import (
	"context"
	"errors"
	"time"

	"medichat/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
	Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error)
	Create(ctx context.Context, user entity.User) (string, error)
	Update(ctx context.Context, user entity.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userRepository struct {
	db mongo.Database
}

func NewUserRepository(db mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Get(ctx context.Context, userId string) (entity.User, error) {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": userId}

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	collection := r.db.Collection("users")
	filter := bson.M{"email": email}

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return entity.User{}, ErrUserNotFound
		}
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	collection := r.db.Collection("users")

	bsonFilter := bson.M{}
	if len(filter.Ids) > 0 {
		bsonFilter["_id"] = bson.M{"$in": filter.Ids}
	}

	cursor, err := collection.Find(ctx, bsonFilter)
	if err != nil {
		return nil, err
	}

	var users []entity.User
	err = cursor.All(ctx, &users)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user entity.User) (string, error) {
	collection := r.db.Collection("users")
	user.Id = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := collection.InsertOne(ctx, user)
	if err != nil {
		return "", err
	}

	return user.Id, nil
}

func (r *userRepository) Update(ctx context.Context, user entity.User) error {
	collection := r.db.Collection("users")
	filter := bson.M{"_id": user.Id}
	update := bson.M{
		"$set": bson.M{
			"name":      user.Name,
			"isOnline":  user.IsOnline,
			"updatedAt": time.Now(),
		},
	}
	_, err := collection.UpdateOne(ctx, filter, update)

	return err
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	collection := r.db.Collection("users")
	count, err := collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	collection := r.db.Collection("users")
	count, err := collection.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
