package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/carelink/internal/models"
)

// ProfileRepository loads role-specific profiles with their associations.
type ProfileRepository interface {
	GetPatient(ctx context.Context, userID string) (*models.Patient, error)
	GetDoctor(ctx context.Context, userID string) (*models.Doctor, error)
	GetAdmin(ctx context.Context, userID string) (*models.Admin, error)
}

// DirectoryService answers "who am I" for authenticated callers.
type DirectoryService struct {
	users    UserRepository
	profiles ProfileRepository
	logger   *slog.Logger
}

func NewDirectoryService(users UserRepository, profiles ProfileRepository, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{users: users, profiles: profiles, logger: logger}
}

// GetMe returns the user with the profile matching their role. A role
// without a profile row yet yields the bare user.
func (s *DirectoryService) GetMe(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.IsGone() {
		return nil, errUserNotFound
	}

	profile := &models.Profile{User: user}

	switch user.Role {
	case models.RolePatient:
		profile.Patient, err = s.profiles.GetPatient(ctx, user.ID)
	case models.RoleDoctor:
		profile.Doctor, err = s.profiles.GetDoctor(ctx, user.ID)
	case models.RoleAdmin, models.RoleSuperAdmin:
		profile.Admin, err = s.profiles.GetAdmin(ctx, user.ID)
	}

	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("user has no profile for role",
				slog.String("user_id", user.ID),
				slog.String("role", string(user.Role)))
			return profile, nil
		}
		return nil, fmt.Errorf("load %s profile: %w", user.Role, err)
	}

	return profile, nil
}
