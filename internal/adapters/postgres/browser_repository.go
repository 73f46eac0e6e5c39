package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
	"gorm.io/gorm"
)

type browserRepository struct {
	db *gorm.DB
}

func (r *browserRepository) GetByPublicID(ctx context.Context, publicID string) (domain.Browser, error) {
	var rec browserModel
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Browser{}, domain.ErrNotFound
		}
		return domain.Browser{}, err
	}
	username, err := r.loadUsername(ctx, rec.UserID)
	if err != nil {
		return domain.Browser{}, err
	}
	return toDomainBrowser(rec, username), nil
}

func (r *browserRepository) Create(ctx context.Context, params ports.BrowserCreateParams) (domain.Browser, error) {
	rec := browserModel{
		PublicID:        params.PublicID,
		SessionID:       params.SessionID,
		UserAgent:       params.UserAgent,
		RememberBrowser: params.RememberBrowser,
		AuthLevel:       int(domain.LevelUnauth),
		AuthState:       string(domain.StateRequestBasic),
		CreatedAt:       params.CreatedAt,
		UpdatedAt:       params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Browser{}, domain.ErrConflict
		}
		return domain.Browser{}, err
	}
	return toDomainBrowser(rec, ""), nil
}

func (r *browserRepository) UpdateSessionID(ctx context.Context, browserID uuid.UUID, sessionID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&browserModel{}).
		Where("browser_id = ?", browserID).
		Updates(map[string]any{
			"session_id": sessionID,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *browserRepository) UpdateRemember(ctx context.Context, browserID uuid.UUID, remember bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&browserModel{}).
		Where("browser_id = ?", browserID).
		Updates(map[string]any{
			"remember_browser": remember,
			"updated_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *browserRepository) UpdateAuth(ctx context.Context, browserID uuid.UUID, userID *uuid.UUID, level domain.AuthLevel, levelExpiresAt *time.Time, state domain.AuthState, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&browserModel{}).
		Where("browser_id = ?", browserID).
		Updates(map[string]any{
			"user_id":               userID,
			"auth_level":            int(level),
			"auth_level_expires_at": levelExpiresAt,
			"auth_state":            string(state),
			"updated_at":            at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *browserRepository) loadUsername(ctx context.Context, userID *uuid.UUID) (string, error) {
	if userID == nil {
		return "", nil
	}
	var rec struct {
		Username string `gorm:"column:username"`
	}
	if err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Select("username").
		Where("user_id = ?", *userID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return rec.Username, nil
}
