package postgres

import (
	"github.com/ojarva-net/sso-frontend/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Browsers     ports.BrowserRepository
	Logins       ports.BrowserLoginRepository
	BrowserUsers ports.BrowserUserRepository
	Fingerprints ports.FingerprintRepository
	Users        ports.UserRepository
	Identities   ports.IdentityRepository
	TrustedRoots ports.TrustedRootRepository
	UserLog      ports.UserLogRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Browsers:     &browserRepository{db: db},
		Logins:       &browserLoginRepository{db: db},
		BrowserUsers: &browserUserRepository{db: db},
		Fingerprints: &fingerprintRepository{db: db},
		Users:        &userRepository{db: db},
		Identities:   &identityRepository{db: db},
		TrustedRoots: &trustedRootRepository{db: db},
		UserLog:      &userLogRepository{db: db},
	}
}
