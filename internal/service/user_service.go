package service

import (
	"context"
	"strings"

	"littlejoys/internal/domain"
)

const notificationPageSize = 20

type UserService struct {
	userRepo         domain.UserRepository
	notificationRepo domain.NotificationRepository
}

func NewUserService(userRepo domain.UserRepository, notificationRepo domain.NotificationRepository) *UserService {
	return &UserService{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
	}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, update *domain.ProfileUpdate) (*domain.User, error) {
	update.Nickname = strings.TrimSpace(update.Nickname)
	if len(update.Nickname) < 1 || len(update.Nickname) > 50 {
		return nil, domain.ErrInvalidInput
	}
	if len(update.Bio) > 200 {
		return nil, domain.ErrInvalidInput
	}
	return s.userRepo.UpdateProfile(ctx, userID, update)
}

func (s *UserService) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return s.userRepo.Stats(ctx, userID)
}

func (s *UserService) ListNotifications(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return s.notificationRepo.ListByRecipient(ctx, userID, notificationPageSize)
}

func (s *UserService) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return s.notificationRepo.MarkRead(ctx, id, userID)
}
