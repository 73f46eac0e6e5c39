package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"gorm.io/gorm"
)

type fingerprintRepository struct {
	db *gorm.DB
}

func (r *fingerprintRepository) LatestForBrowser(ctx context.Context, browserID uuid.UUID) (domain.FingerprintObservation, error) {
	var rec fingerprintModel
	if err := r.db.WithContext(ctx).
		Where("browser_id = ?", browserID).
		Order("created_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FingerprintObservation{}, domain.ErrNotFound
		}
		return domain.FingerprintObservation{}, err
	}
	return toDomainFingerprint(rec), nil
}

func (r *fingerprintRepository) Create(ctx context.Context, obs domain.FingerprintObservation) (domain.FingerprintObservation, error) {
	rec := fingerprintModel{
		BrowserID:      obs.BrowserID,
		FirstSeen:      obs.FirstSeen,
		LastSeen:       obs.LastSeen,
		TotalConn:      obs.TotalConn,
		UptimeSec:      obs.UptimeSec,
		UpModDays:      obs.UpModDays,
		Distance:       obs.Distance,
		OSMatchQuality: obs.OSMatchQuality,
		OSName:         obs.OSName,
		OSFlavor:       obs.OSFlavor,
		LinkType:       obs.LinkType,
		Wraparounds:    obs.Wraparounds,
		CreatedAt:      obs.CreatedAt,
		UpdatedAt:      obs.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.FingerprintObservation{}, err
	}
	return toDomainFingerprint(rec), nil
}

func (r *fingerprintRepository) Update(ctx context.Context, obs domain.FingerprintObservation) error {
	res := r.db.WithContext(ctx).
		Model(&fingerprintModel{}).
		Where("observation_id = ?", obs.ObservationID).
		Updates(map[string]any{
			"first_seen":       obs.FirstSeen,
			"last_seen":        obs.LastSeen,
			"total_conn":       obs.TotalConn,
			"uptime_sec":       obs.UptimeSec,
			"up_mod_days":      obs.UpModDays,
			"distance":         obs.Distance,
			"os_match_quality": obs.OSMatchQuality,
			"os_name":          obs.OSName,
			"os_flavor":        obs.OSFlavor,
			"link_type":        obs.LinkType,
			"wraparounds":      obs.Wraparounds,
			"updated_at":       obs.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *fingerprintRepository) ListByBrowser(ctx context.Context, browserID uuid.UUID, limit int) ([]domain.FingerprintObservation, error) {
	var rows []fingerprintModel
	query := r.db.WithContext(ctx).
		Where("browser_id = ?", browserID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.FingerprintObservation, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainFingerprint(row))
	}
	return result, nil
}
