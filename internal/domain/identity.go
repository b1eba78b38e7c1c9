package domain

import "time"

// User is a signed-up account. Email is stored lower-cased.
type User struct {
	ID           string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	DisplayName  string    `json:"displayName" gorm:"type:varchar(255)"`
	PasswordHash string    `json:"-"           gorm:"type:varchar(255)"`
	Provider     string    `json:"provider"    gorm:"type:varchar(32);not null;default:'password'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// AuthSession backs one issued access token. Its ID is the token's jti;
// signing out sets RevokedAt.
type AuthSession struct {
	ID        string     `gorm:"type:char(36);primaryKey"`
	UserID    string     `gorm:"type:char(36);not null;index"`
	CreatedAt time.Time  `gorm:"not null"`
	ExpiresAt time.Time  `gorm:"not null;index"`
	RevokedAt *time.Time `gorm:"index"`

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AuthSession.
func (AuthSession) TableName() string { return "auth_sessions" }

// Active reports whether the session can still authenticate requests at now.
func (s AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// PasswordReset is a one-time reset token. Only the SHA-256 of the token is
// stored.
type PasswordReset struct {
	TokenHash string    `gorm:"type:char(64);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UsedAt    *time.Time

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PasswordReset.
func (PasswordReset) TableName() string { return "password_resets" }
