package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type browserUserRepository struct {
	db *gorm.DB
}

// UpsertLastSeen refreshes exactly one field pair per sighting: the passive
// pair for heartbeat traffic, the active pair for navigation.
func (r *browserUserRepository) UpsertLastSeen(ctx context.Context, params ports.LastSeenParams) error {
	rec := browserUserModel{
		UserID:    params.UserID,
		BrowserID: params.BrowserID,
	}
	assignments := map[string]any{}
	if params.Passive {
		rec.RemoteIPPassive = nullableString(params.RemoteIP)
		rec.LastSeenPassive = &params.SeenAt
		assignments["remote_ip_passive"] = rec.RemoteIPPassive
		assignments["last_seen_passive"] = rec.LastSeenPassive
	} else {
		rec.RemoteIP = nullableString(params.RemoteIP)
		rec.LastSeen = &params.SeenAt
		assignments["remote_ip"] = rec.RemoteIP
		assignments["last_seen"] = rec.LastSeen
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "browser_id"},
		},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&rec).Error
}

func (r *browserUserRepository) Get(ctx context.Context, userID, browserID uuid.UUID) (domain.BrowserUser, error) {
	var rec browserUserModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("browser_id = ?", browserID).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BrowserUser{}, domain.ErrNotFound
		}
		return domain.BrowserUser{}, err
	}
	return toDomainBrowserUser(rec), nil
}
