package domain

import (
	"strings"
	"time"
)

// User is an authenticatable account stored in the "user" collection.
type User struct {
	ID                     string     `bson:"_id,omitempty"`
	WorkspaceID            string     `bson:"workspaceId,omitempty"`
	UserName               string     `bson:"userName"`
	NormalizedUserName     string     `bson:"normalizedUserName"`
	Alias                  string     `bson:"alias"`
	ImageURI               string     `bson:"imageUri,omitempty"`
	PasswordHash           string     `bson:"passwordHash"`
	AccessFailedCount      int        `bson:"accessFailedCount"`
	LockoutEnabled         bool       `bson:"lockoutEnabled"`
	LockoutEnd             *time.Time `bson:"lockoutEnd,omitempty"`
	PasswordExpiresEnabled bool       `bson:"passwordExpiresEnabled"`
	PasswordExpires        *time.Time `bson:"passwordExpires,omitempty"`
	RequestPasswordChange  bool       `bson:"requestPasswordChange"`
	// SecurityStamp changes whenever the user's credentials change. Session
	// cookies carry the stamp they were issued with and are invalidated on
	// mismatch.
	SecurityStamp string          `bson:"securityStamp"`
	Active        bool            `bson:"active"`
	ClientApps    []UserClientApp `bson:"clientApps,omitempty"`
	Companies     []UserCompany   `bson:"companies,omitempty"`
	CreatedAt     time.Time       `bson:"createdAt"`
	CreatedBy     string          `bson:"createdBy,omitempty"`
	UpdatedAt     time.Time       `bson:"updatedAt"`
}

// UserClientApp is a per-client-application grant embedded in the user record.
type UserClientApp struct {
	ClientAppID string    `bson:"clientAppId"`
	Permitted   bool      `bson:"permitted"`
	HasAccess   bool      `bson:"hasAccess"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// UserCompany links a user to a company. At most one entry should carry
// Principal=true; this is not enforced at write time.
type UserCompany struct {
	CompanyID string `bson:"companyId"`
	Principal bool   `bson:"principal"`
}

// IsLockedOut reports whether a lockout is in effect at the given instant.
func (u *User) IsLockedOut(now time.Time) bool {
	if !u.LockoutEnabled || u.LockoutEnd == nil {
		return false
	}
	return !now.After(*u.LockoutEnd)
}

// PasswordExpired reports whether the stored password is past its expiry.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresEnabled && u.PasswordExpires != nil && u.PasswordExpires.Before(now)
}

// ClientAppGrant returns the grant entry for the given client app, or nil.
func (u *User) ClientAppGrant(clientAppID string) *UserClientApp {
	for i := range u.ClientApps {
		if u.ClientApps[i].ClientAppID == clientAppID {
			return &u.ClientApps[i]
		}
	}
	return nil
}

// CompanyByID returns the company entry matching companyID, or nil.
func (u *User) CompanyByID(companyID string) *UserCompany {
	for i := range u.Companies {
		if u.Companies[i].CompanyID == companyID {
			return &u.Companies[i]
		}
	}
	return nil
}

// PrincipalCompany returns the entry flagged principal, or nil.
func (u *User) PrincipalCompany() *UserCompany {
	for i := range u.Companies {
		if u.Companies[i].Principal {
			return &u.Companies[i]
		}
	}
	return nil
}

// NormalizeUserName produces the case-folded form used as the lookup key.
func NormalizeUserName(userName string) string {
	return strings.ToUpper(strings.TrimSpace(userName))
}
