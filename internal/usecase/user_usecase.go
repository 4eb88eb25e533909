package usecase

import (
	"context"

	"medichat/internal/entity"
	"medichat/internal/repository"
)

type UserUsecase interface {
	Get(ctx context.Context, userId string) (entity.User, error)
	Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error)
	SetOnline(ctx context.Context, userId string, online bool) error
}

type userUsecase struct {
	userRepo repository.UserRepository
}

func NewUserUsecase(userRepo repository.UserRepository) UserUsecase {
	return &userUsecase{
		userRepo: userRepo,
	}
}

func (u *userUsecase) Get(ctx context.Context, userId string) (entity.User, error) {
	user, err := u.userRepo.Get(ctx, userId)
	if err != nil {
		return entity.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (u *userUsecase) Index(ctx context.Context, filter entity.UserIndexFilter) ([]entity.User, error) {
	users, err := u.userRepo.Index(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

func (u *userUsecase) SetOnline(ctx context.Context, userId string, online bool) error {
	user, err := u.userRepo.Get(ctx, userId)
	if err != nil {
		return err
	}
	user.IsOnline = online
	return u.userRepo.Update(ctx, user)
}
