package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"gorm.io/gorm"
)

type identityRepository struct {
	db *gorm.DB
}

func (r *identityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Identity, error) {
	var rows []identityModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Identity, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainIdentity(row))
	}
	return result, nil
}

func (r *identityRepository) GetByName(ctx context.Context, name string) (domain.Identity, error) {
	var rec identityModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, domain.ErrNotFound
		}
		return domain.Identity{}, err
	}
	return toDomainIdentity(rec), nil
}

// GetOrCreate resolves the user's identity by name, minting it on first use.
// A concurrent mint loses the unique race and reads the winner's row.
func (r *identityRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, name string, now time.Time) (domain.Identity, bool, error) {
	var rec identityModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("name = ?", name).
		Take(&rec).Error
	if err == nil {
		return toDomainIdentity(rec), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Identity{}, false, err
	}

	var existing int64
	if err := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("user_id = ?", userID).
		Count(&existing).Error; err != nil {
		return domain.Identity{}, false, err
	}

	rec = identityModel{
		UserID:    userID,
		Name:      name,
		IsDefault: existing == 0,
		CreatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			var again identityModel
			if err := r.db.WithContext(ctx).
				Where("user_id = ?", userID).
				Where("name = ?", name).
				Take(&again).Error; err != nil {
				return domain.Identity{}, false, err
			}
			return toDomainIdentity(again), false, nil
		}
		return domain.Identity{}, false, err
	}
	return toDomainIdentity(rec), true, nil
}
