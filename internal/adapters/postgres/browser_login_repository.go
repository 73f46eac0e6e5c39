package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type browserLoginRepository struct {
	db *gorm.DB
}

func (r *browserLoginRepository) Upsert(ctx context.Context, params ports.BrowserLoginUpsertParams) error {
	rec := browserLoginModel{
		UserID:         params.UserID,
		BrowserID:      params.BrowserID,
		Provider:       params.Provider,
		RemoteService:  params.RemoteService,
		SignedOut:      false,
		ExpiresSession: params.ExpiresSession,
		AuthTimestamp:  params.AuthTimestamp,
		CreatedAt:      params.AuthTimestamp,
		UpdatedAt:      params.AuthTimestamp,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "browser_id"},
			{Name: "provider"},
			{Name: "remote_service"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"signed_out":      false,
			"expires_session": rec.ExpiresSession,
			"auth_timestamp":  rec.AuthTimestamp,
			"updated_at":      rec.UpdatedAt,
		}),
	}).Create(&rec).Error
}

// MarkSessionLoginsSignedOut flips every active session-scoped login of the
// browser and returns the flipped rows, so the caller can log each sign-out.
func (r *browserLoginRepository) MarkSessionLoginsSignedOut(ctx context.Context, browserID uuid.UUID, at time.Time) ([]domain.BrowserLogin, error) {
	var rows []browserLoginModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("browser_id = ?", browserID).
			Where("signed_out = FALSE").
			Where("expires_session = TRUE").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.LoginID)
		}
		return tx.Model(&browserLoginModel{}).
			Where("login_id IN ?", ids).
			Updates(map[string]any{
				"signed_out": true,
				"updated_at": at,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	result := make([]domain.BrowserLogin, 0, len(rows))
	for _, row := range rows {
		row.SignedOut = true
		result = append(result, toDomainBrowserLogin(row))
	}
	return result, nil
}

func (r *browserLoginRepository) ListByBrowser(ctx context.Context, browserID uuid.UUID) ([]domain.BrowserLogin, error) {
	var rows []browserLoginModel
	if err := r.db.WithContext(ctx).
		Where("browser_id = ?", browserID).
		Order("auth_timestamp DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.BrowserLogin, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainBrowserLogin(row))
	}
	return result, nil
}
