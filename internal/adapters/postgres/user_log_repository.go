package postgres

import (
	"context"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"gorm.io/gorm"
)

type userLogRepository struct {
	db *gorm.DB
}

func (r *userLogRepository) Append(ctx context.Context, entry domain.UserLogEntry) error {
	rec := userLogModel{
		UserID:    entry.UserID,
		BrowserID: entry.BrowserID,
		Message:   entry.Message,
		Icon:      entry.Icon,
		RemoteIP:  nullableString(entry.RemoteIP),
		CreatedAt: entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}
