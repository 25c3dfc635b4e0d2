package statement

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"statementvault/internal/utils"
	"statementvault/pkg/types"

	"github.com/sirupsen/logrus"
)

// presignTTL bounds the signed storage URL handed out on redemption. It is
// independent of the download token's own validity window.
const presignTTL = 5 * time.Minute

const tokenEntropyBytes = 32

// maxTokenAttempts bounds retries when a generated token value collides with
// an existing one. With 256 bits of entropy a collision means something is
// badly wrong with the random source, so a small bound suffices.
const maxTokenAttempts = 3

// IssueLink mints a single-use download token for a statement the customer
// owns. Issuance is capped by the number of tokens the customer already
// holds that are neither used nor expired, regardless of which statements
// they cover; the store enforces the ceiling atomically with the insert.
func (s *Service) IssueLink(ctx context.Context, customerID, statementID, clientAddr, userAgent string) (*types.DownloadLink, error) {
	record, err := s.statements.StatementByIDAndCustomer(ctx, statementID, customerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.linkValidity)

	var value string
	for attempt := 0; ; attempt++ {
		value, err = secureToken()
		if err != nil {
			return nil, err
		}

		err = s.tokens.CreateWithinLimit(ctx, &types.DownloadToken{
			ID:          utils.NanoID(),
			Token:       value,
			StatementID: record.ID,
			CustomerID:  customerID,
			ExpiresAt:   expiresAt,
			Used:        false,
			CreatedAt:   now,
		}, now, s.maxActiveLinks)
		if err == nil {
			break
		}
		if !errors.Is(err, types.ErrTokenExists) || attempt+1 >= maxTokenAttempts {
			return nil, err
		}

		s.logger.WithField("attempt", attempt+1).Warn("download token collision, regenerating")
	}

	s.recorder.Record(ctx, types.AuditActionGenerateLink, customerID, statementID, clientAddr, userAgent,
		"Generated download link for statement: "+record.FileName)

	s.logger.WithFields(logrus.Fields{
		"statement_id": statementID,
		"customer_id":  customerID,
		"expires_at":   expiresAt,
	}).Info("download link generated")

	return &types.DownloadLink{
		DownloadPath:    "/api/statements/download/" + value,
		ExpiresAt:       expiresAt,
		ValidForMinutes: int(s.linkValidity / time.Minute),
	}, nil
}

// Redeem consumes a download token exactly once and exchanges it for a
// short-lived signed storage URL. The used-flag transition is durable before
// the URL is produced: a crash in between consumes the token without leaking
// a link, never the reverse. Whatever goes wrong, the caller learns only
// that the token is invalid or expired.
func (s *Service) Redeem(ctx context.Context, tokenValue, clientAddr, userAgent string) (string, error) {
	token, err := s.tokens.Redeem(ctx, tokenValue, s.now())
	if err != nil {
		if errors.Is(err, types.ErrInvalidToken) {
			// Actor unknown: the redemption attempt carried no session.
			s.recorder.Record(ctx, types.AuditActionAccessDenied, "", "", clientAddr, userAgent,
				"Rejected download link redemption")
		}
		return "", err
	}

	record, err := s.statements.StatementByIDAndCustomer(ctx, token.StatementID, token.CustomerID)
	if err != nil {
		if errors.Is(err, types.ErrStatementNotFound) {
			// Statement deleted after issuance. The token is consumed and the
			// caller sees the same uninformative failure as for any bad token.
			return "", types.ErrInvalidToken
		}
		return "", err
	}

	signedURL, err := s.objects.PresignGet(ctx, record.StorageKey, record.FileName, record.ContentType, presignTTL)
	if err != nil {
		s.logger.WithError(err).WithField("storage_key", record.StorageKey).Error("failed to presign statement download")
		return "", fmt.Errorf("%w: %s", types.ErrStorageUnavailable, "failed to sign download url")
	}

	s.recorder.Record(ctx, types.AuditActionDownload, token.CustomerID, record.ID, clientAddr, userAgent,
		"Downloaded statement: "+record.FileName)

	s.logger.WithFields(logrus.Fields{
		"statement_id": record.ID,
		"customer_id":  token.CustomerID,
	}).Info("statement download link redeemed")

	return signedURL, nil
}

func secureToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
