package model

import "time"

// Session is an authenticated admin session decoded from a token
type Session struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-" masq:"secret"`
}

// RoleAdmin is the only role issued
const RoleAdmin = "admin"

// CacheItem is a cached upstream payload
type CacheItem struct {
	Data     []byte
	StoredAt time.Time
}
