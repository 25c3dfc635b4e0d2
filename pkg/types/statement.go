package types

import "time"

// Statement is the metadata record for one stored account statement. The
// bytes themselves live in the object store under StorageKey; ChecksumSHA256
// is the base64-encoded digest of the exact bytes that were stored.
type Statement struct {
	ID              string    `db:"id"`
	CustomerID      string    `db:"customer_id"`
	StorageKey      string    `db:"storage_key"`
	FileName        string    `db:"file_name"`
	FileSizeBytes   int64     `db:"file_size_bytes"`
	StatementPeriod string    `db:"statement_period"` // e.g. "2024-01"
	ContentType     string    `db:"content_type"`
	ChecksumSHA256  string    `db:"checksum_sha256"`
	Encrypted       bool      `db:"encrypted"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
