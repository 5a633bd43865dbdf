package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/carelink/internal/models"
	pkglogger "github.com/BradenHooton/carelink/pkg/logger"
)

// UserService handles account administration
type UserService struct {
	repo        UserRepository
	sessions    SessionRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, sessions SessionRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		sessions:    sessions,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UpdateStatus sets the account status of targetID on behalf of actor.
// BLOCKED and DELETED end every session of the target.
func (s *UserService) UpdateStatus(ctx context.Context, actor *models.RequestUser, targetID string, status models.UserStatus) (*models.User, error) {
	if !status.IsValid() {
		return nil, models.NewError(models.ErrBadRequest, "Invalid status")
	}
	if actor == nil {
		return nil, models.ErrUnauthorized
	}
	if actor.UserID == targetID {
		return nil, models.NewError(models.ErrForbidden, "You cannot change your own status")
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", targetID))
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if isAdminRole(target.Role) && actor.Role != models.RoleSuperAdmin {
		return nil, models.NewError(models.ErrForbidden, "Only a super admin can change an admin's status")
	}

	updated, err := s.repo.UpdateStatus(ctx, targetID, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if status != models.UserStatusActive {
		n, err := s.sessions.DeleteAllForUser(ctx, targetID)
		if err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
		s.logger.Info("sessions revoked after status change",
			slog.String("user_id", targetID),
			slog.Int64("count", n))
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventStatusChange,
		UserID:    targetID,
		Success:   true,
		Metadata: map[string]string{
			"actor_id":   actor.UserID,
			"old_status": string(target.Status),
			"new_status": string(status),
		},
	})

	return updated, nil
}

func isAdminRole(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}
