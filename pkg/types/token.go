package types

import "time"

// DownloadToken is a single-use download capability bound to one statement
// and one customer. Token carries the URL-safe secret value; Used flips to
// true exactly once, on redemption, and never back.
type DownloadToken struct {
	ID          string     `db:"id"`
	Token       string     `db:"token"`
	StatementID string     `db:"statement_id"`
	CustomerID  string     `db:"customer_id"`
	ExpiresAt   time.Time  `db:"expires_at"`
	Used        bool       `db:"used"`
	UsedAt      *time.Time `db:"used_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Redeemable reports whether the token could still be redeemed at the given
// instant. The authoritative check happens in the database; this is for
// display and tests.
func (t *DownloadToken) Redeemable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
