package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type trustedRootRepository struct {
	db *gorm.DB
}

// Upsert is idempotent by (identity, trust root); repeating a consent is a
// no-op success.
func (r *trustedRootRepository) Upsert(ctx context.Context, identityID uuid.UUID, trustRoot string, now time.Time) error {
	rec := trustedRootModel{
		IdentityID: identityID,
		TrustRoot:  trustRoot,
		CreatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "identity_id"},
			{Name: "trust_root"},
		},
		DoNothing: true,
	}).Create(&rec).Error
}

func (r *trustedRootRepository) Exists(ctx context.Context, identityID uuid.UUID, trustRoot string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&trustedRootModel{}).
		Where("identity_id = ?", identityID).
		Where("trust_root = ?", trustRoot).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
