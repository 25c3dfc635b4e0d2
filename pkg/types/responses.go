package types

import "time"

// StatementSummary is what the API returns for a stored statement. The
// storage key and digest internals stay server-side.
type StatementSummary struct {
	ID              string    `json:"id"`
	FileName        string    `json:"fileName"`
	StatementPeriod string    `json:"statementPeriod"`
	FileSizeBytes   int64     `json:"fileSizeBytes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DownloadLink describes a freshly issued single-use download capability.
// DownloadPath is relative; the token value never appears anywhere else.
type DownloadLink struct {
	DownloadPath    string    `json:"downloadUrl"`
	ExpiresAt       time.Time `json:"expiresAt"`
	ValidForMinutes int       `json:"validForMinutes"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	Customer  struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
	} `json:"customer"`
}
