package statement

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"statementvault/internal/utils"
	"statementvault/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ObjectStore is the narrow view of the storage backend the service needs.
// internal/storage.S3Store satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key, fileName, contentType string, ttl time.Duration) (string, error)
}

type StatementStore interface {
	Create(ctx context.Context, statement *types.Statement) error
	StatementByIDAndCustomer(ctx context.Context, statementID, customerID string) (*types.Statement, error)
	StatementByCustomerAndPeriod(ctx context.Context, customerID, period string) (*types.Statement, error)
	StatementsByCustomer(ctx context.Context, customerID string) ([]*types.Statement, error)
	Delete(ctx context.Context, statementID, customerID string) error
}

type TokenStore interface {
	CreateWithinLimit(ctx context.Context, token *types.DownloadToken, now time.Time, maxActive int64) error
	Redeem(ctx context.Context, tokenValue string, now time.Time) (*types.DownloadToken, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type CustomerDirectory interface {
	Customer(ctx context.Context, customerID string) (*types.Customer, error)
}

// Service owns the statement lifecycle: validated uploads into encrypted
// object storage, listing, deletion, and the single-use download-token flow.
type Service struct {
	logger     *logrus.Logger
	objects    ObjectStore
	statements StatementStore
	tokens     TokenStore
	customers  CustomerDirectory
	recorder   *Recorder

	maxUploadBytes int64
	linkValidity   time.Duration
	maxActiveLinks int64

	now func() time.Time
}

func New(
	logger *logrus.Logger,
	config *types.Config,
	objects ObjectStore,
	statements StatementStore,
	tokens TokenStore,
	customers CustomerDirectory,
	audits AuditAppender,
) *Service {
	return &Service{
		logger:         logger,
		objects:        objects,
		statements:     statements,
		tokens:         tokens,
		customers:      customers,
		recorder:       NewRecorder(logger, audits),
		maxUploadBytes: config.MaxUploadBytes,
		linkValidity:   time.Duration(config.DownloadLinkMinutes) * time.Minute,
		maxActiveLinks: int64(config.MaxActiveDownloadLinks),
		now:            time.Now,
	}
}

// UploadInput carries one upload request. ClientAddr and UserAgent feed the
// audit trail only.
type UploadInput struct {
	CustomerID  string
	FileName    string
	ContentType string
	Period      string
	Data        []byte
	ClientAddr  string
	UserAgent   string
}

// Upload validates the file, writes it to the object store with server-side
// encryption, and then persists the metadata row. The object write strictly
// precedes the metadata write: a storage failure leaves no metadata behind,
// while an orphan object with no metadata is accepted and not reconciled
// here.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*types.StatementSummary, error) {
	customer, err := s.customers.Customer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.Active {
		return nil, types.ErrCustomerInactive
	}

	if strings.TrimSpace(in.Period) == "" {
		return nil, fmt.Errorf("%w: statement period is required", types.ErrValidation)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", types.ErrValidation)
	}

	digest, err := VerifyStatement(in.Data, in.ContentType, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	_, err = s.statements.StatementByCustomerAndPeriod(ctx, in.CustomerID, in.Period)
	if err == nil {
		return nil, types.ErrDuplicatePeriod
	}
	if !errors.Is(err, types.ErrStatementNotFound) {
		return nil, err
	}

	key := storageKey(in.CustomerID, in.Period, in.FileName)

	if err := s.objects.Put(ctx, key, in.Data, in.ContentType); err != nil {
		s.logger.WithError(err).WithField("storage_key", key).Error("failed to upload statement to storage")
		return nil, fmt.Errorf("%w: %s", types.ErrStorageUnavailable, "failed to upload file to storage")
	}

	now := s.now()
	record := &types.Statement{
		ID:              utils.NanoID(),
		CustomerID:      customer.ID,
		StorageKey:      key,
		FileName:        in.FileName,
		FileSizeBytes:   int64(len(in.Data)),
		StatementPeriod: in.Period,
		ContentType:     in.ContentType,
		ChecksumSHA256:  digest,
		Encrypted:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.statements.Create(ctx, record); err != nil {
		// The object is already in storage; a lost duplicate-period race or a
		// database fault leaves it orphaned, which is accepted.
		return nil, err
	}

	s.recorder.Record(ctx, types.AuditActionUpload, customer.ID, record.ID, in.ClientAddr, in.UserAgent,
		"Uploaded statement for period: "+in.Period)

	s.logger.WithFields(logrus.Fields{
		"statement_id": record.ID,
		"customer_id":  customer.ID,
		"period":       in.Period,
	}).Info("statement uploaded")

	return summarize(record), nil
}

// Statements lists a customer's statements, newest period first.
func (s *Service) Statements(ctx context.Context, customerID string) ([]*types.StatementSummary, error) {
	records, err := s.statements.StatementsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*types.StatementSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, summarize(record))
	}

	return summaries, nil
}

// Delete removes the stored object first and only then the metadata row. If
// the object delete fails the metadata row is preserved, so a record never
// points at nothing while the object still exists. A metadata-delete failure
// after a successful object delete leaves an orphan row; that residual
// window is accepted rather than compensated.
func (s *Service) Delete(ctx context.Context, customerID, statementID, clientAddr, userAgent string) error {
	record, err := s.statements.StatementByIDAndCustomer(ctx, statementID, customerID)
	if err != nil {
		return err
	}

	if err := s.objects.Delete(ctx, record.StorageKey); err != nil {
		s.logger.WithError(err).WithField("storage_key", record.StorageKey).Error("failed to delete statement object")
		return fmt.Errorf("%w: %s", types.ErrStorageUnavailable, "failed to delete statement from storage")
	}

	if err := s.statements.Delete(ctx, statementID, customerID); err != nil {
		return err
	}

	s.recorder.Record(ctx, types.AuditActionDelete, customerID, statementID, clientAddr, userAgent,
		"Deleted statement: "+record.FileName)

	s.logger.WithFields(logrus.Fields{
		"statement_id": statementID,
		"customer_id":  customerID,
	}).Info("statement deleted")

	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// storageKey derives an unpredictable object key. The random component keeps
// keys unguessable and collision-free; the file name is sanitized so it can
// never traverse out of the prefix.
func storageKey(customerID, period, fileName string) string {
	sanitized := unsafeKeyChars.ReplaceAllString(fileName, "_")
	return fmt.Sprintf("statements/%s/%s/%s_%s", customerID, period, uuid.NewString(), sanitized)
}

func summarize(record *types.Statement) *types.StatementSummary {
	return &types.StatementSummary{
		ID:              record.ID,
		FileName:        record.FileName,
		StatementPeriod: record.StatementPeriod,
		FileSizeBytes:   record.FileSizeBytes,
		CreatedAt:       record.CreatedAt,
	}
}
