package postgres

import (
	"errors"
	"strings"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:       row.UserID,
		Username:     row.Username,
		Email:        row.Email,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toDomainBrowser(row browserModel, username string) domain.Browser {
	return domain.Browser{
		BrowserID:          row.BrowserID,
		PublicID:           row.PublicID,
		SessionID:          row.SessionID,
		UserID:             row.UserID,
		Username:           username,
		RememberBrowser:    row.RememberBrowser,
		AuthLevel:          domain.AuthLevel(row.AuthLevel),
		AuthLevelExpiresAt: row.AuthLevelExpiresAt,
		AuthState:          domain.AuthState(row.AuthState),
		UserAgent:          row.UserAgent,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toDomainBrowserLogin(row browserLoginModel) domain.BrowserLogin {
	return domain.BrowserLogin{
		LoginID:        row.LoginID,
		UserID:         row.UserID,
		BrowserID:      row.BrowserID,
		Provider:       row.Provider,
		RemoteService:  row.RemoteService,
		SignedOut:      row.SignedOut,
		ExpiresSession: row.ExpiresSession,
		AuthTimestamp:  row.AuthTimestamp,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toDomainBrowserUser(row browserUserModel) domain.BrowserUser {
	return domain.BrowserUser{
		UserID:          row.UserID,
		BrowserID:       row.BrowserID,
		RemoteIP:        derefString(row.RemoteIP),
		LastSeen:        row.LastSeen,
		RemoteIPPassive: derefString(row.RemoteIPPassive),
		LastSeenPassive: row.LastSeenPassive,
	}
}

func toDomainFingerprint(row fingerprintModel) domain.FingerprintObservation {
	return domain.FingerprintObservation{
		ObservationID:  row.ObservationID,
		BrowserID:      row.BrowserID,
		FirstSeen:      row.FirstSeen,
		LastSeen:       row.LastSeen,
		TotalConn:      row.TotalConn,
		UptimeSec:      row.UptimeSec,
		UpModDays:      row.UpModDays,
		Distance:       row.Distance,
		OSMatchQuality: row.OSMatchQuality,
		OSName:         row.OSName,
		OSFlavor:       row.OSFlavor,
		LinkType:       row.LinkType,
		Wraparounds:    row.Wraparounds,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toDomainIdentity(row identityModel) domain.Identity {
	return domain.Identity{
		IdentityID: row.IdentityID,
		UserID:     row.UserID,
		Name:       row.Name,
		IsDefault:  row.IsDefault,
		CreatedAt:  row.CreatedAt,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
