package model

import "time"

// Account roles carried in the access token's "role" claim.
//
//  BUYER  – default role, may purchase tickets.
//  MEMBER – a buyer with an active membership; qualifies for members-only
//           events and member prices.
//  STAFF  – door staff operating a scanner.
//  KIOSK  – self-service scanning device; must present validation tokens.
//  ADMIN  – back-office operator (cancellations, manual payment status).
const (
	RoleBuyer  = "BUYER"
	RoleMember = "MEMBER"
	RoleStaff  = "STAFF"
	RoleKiosk  = "KIOSK"
	RoleAdmin  = "ADMIN"
)

// Account mirrors a row of the `accounts` table.
type Account struct {
	ID           uint64    // accounts.id
	Email        string    // accounts.email (unique, lower-cased)
	PasswordHash string    // accounts.password_hash (bcrypt)
	Role         string    // accounts.role
	IsActive     bool      // accounts.is_active
	CreatedAt    time.Time // accounts.created_at
	UpdatedAt    time.Time // accounts.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	AccountID uint64     // refresh_tokens.account_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
