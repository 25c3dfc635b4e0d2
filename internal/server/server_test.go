package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"statementvault/internal/statement"
	"statementvault/internal/utils"
	"statementvault/pkg/types"

	"github.com/sirupsen/logrus"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key, _, _ string, _ time.Duration) (string, error) {
	return "https://storage.test/signed/" + key, nil
}

type memStatements struct {
	mu         sync.Mutex
	statements map[string]*types.Statement
}

func (m *memStatements) Create(_ context.Context, statement *types.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[statement.ID] = statement
	return nil
}

func (m *memStatements) StatementByIDAndCustomer(_ context.Context, statementID, customerID string) (*types.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.statements[statementID]
	if !ok || record.CustomerID != customerID {
		return nil, types.ErrStatementNotFound
	}
	return record, nil
}

func (m *memStatements) StatementByCustomerAndPeriod(_ context.Context, customerID, period string) (*types.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.statements {
		if record.CustomerID == customerID && record.StatementPeriod == period {
			return record, nil
		}
	}
	return nil, types.ErrStatementNotFound
}

func (m *memStatements) StatementsByCustomer(_ context.Context, customerID string) ([]*types.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []*types.Statement
	for _, record := range m.statements {
		if record.CustomerID == customerID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (m *memStatements) Delete(_ context.Context, statementID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.statements[statementID]
	if !ok || record.CustomerID != customerID {
		return types.ErrStatementNotFound
	}
	delete(m.statements, statementID)
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*types.DownloadToken
}

func (m *memTokens) CreateWithinLimit(_ context.Context, token *types.DownloadToken, now time.Time, maxActive int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active int64
	for _, existing := range m.tokens {
		if existing.CustomerID == token.CustomerID && existing.Redeemable(now) {
			active++
		}
	}
	if active >= maxActive {
		return types.ErrRateLimited
	}
	if _, exists := m.tokens[token.Token]; exists {
		return types.ErrTokenExists
	}
	clone := *token
	m.tokens[token.Token] = &clone
	return nil
}

func (m *memTokens) Redeem(_ context.Context, tokenValue string, now time.Time) (*types.DownloadToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[tokenValue]
	if !ok || !token.Redeemable(now) {
		return nil, types.ErrInvalidToken
	}
	token.Used = true
	usedAt := now
	token.UsedAt = &usedAt
	clone := *token
	return &clone, nil
}

func (m *memTokens) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for value, token := range m.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(m.tokens, value)
			removed++
		}
	}
	return removed, nil
}

// memCustomers backs both the auth handlers and the core's customer lookup.
type memCustomers struct {
	mu        sync.Mutex
	customers map[string]*types.Customer
}

func (m *memCustomers) Customer(_ context.Context, customerID string) (*types.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[customerID]
	if !ok {
		return nil, types.ErrCustomerNotFound
	}
	return customer, nil
}

func (m *memCustomers) CustomerByEmail(_ context.Context, email string) (*types.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, customer := range m.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return nil, types.ErrCustomerNotFound
}

func (m *memCustomers) Create(_ context.Context, customer *types.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if customer.ID == "" {
		customer.ID = utils.NanoID()
	}
	m.customers[customer.ID] = customer
	return nil
}

type memAudits struct {
	mu      sync.Mutex
	entries []*types.AuditLog
}

func (m *memAudits) Append(_ context.Context, entry *types.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

type testBackend struct {
	objects    *memObjects
	statements *memStatements
	tokens     *memTokens
	customers  *memCustomers
	audits     *memAudits
}

func newTestServer(t *testing.T) (*httptest.Server, *testBackend) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &types.Config{
		ServerPort:             0,
		MaxUploadBytes:         10 << 20,
		DownloadLinkMinutes:    15,
		MaxActiveDownloadLinks: 5,
		JWTSecret:              "integration-test-signing-secret",
		CookieHashKey:          base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x24}, 32)),
		CookieBlockKey:         base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32)),
	}

	backend := &testBackend{
		objects:    &memObjects{objects: map[string][]byte{}},
		statements: &memStatements{statements: map[string]*types.Statement{}},
		tokens:     &memTokens{tokens: map[string]*types.DownloadToken{}},
		customers:  &memCustomers{customers: map[string]*types.Customer{}},
		audits:     &memAudits{},
	}

	core := statement.New(logger, config, backend.objects, backend.statements, backend.tokens, backend.customers, backend.audits)

	svc, err := New(config, logger, core, backend.customers, nil, "")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(svc.server.Handler)
	t.Cleanup(ts.Close)

	return ts, backend
}

// noRedirectClient stops at the first response so the download redirect can
// be inspected instead of followed to the fake storage host.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func register(t *testing.T, ts *httptest.Server, email, password string) types.AuthResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"fullName": "Jane Tester",
	})
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("register status = %d, body %s", resp.StatusCode, payload)
	}

	var auth types.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if auth.Token == "" || auth.Customer.ID == "" {
		t.Fatalf("incomplete auth response: %+v", auth)
	}
	return auth
}

func multipartUpload(t *testing.T, period, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("period", period); err != nil {
		t.Fatalf("write period field: %v", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func authedRequest(t *testing.T, method, url, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := noRedirectClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func uploadStatement(t *testing.T, ts *httptest.Server, token, period string) types.StatementSummary {
	t.Helper()

	body, contentType := multipartUpload(t, period, "statement.pdf", "application/pdf", []byte("%PDF-1.4\ncontent for "+period))
	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/statements/upload", token, body, contentType)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, payload)
	}

	var summary types.StatementSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return summary
}

func TestStatementLifecycleOverHTTP(t *testing.T) {
	ts, backend := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")

	summary := uploadStatement(t, ts, auth.Token, "2024-01")
	if summary.StatementPeriod != "2024-01" {
		t.Errorf("period = %s", summary.StatementPeriod)
	}

	// List shows the upload.
	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/statements", auth.Token, nil, "")
	var summaries []types.StatementSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(summaries) != 1 || summaries[0].ID != summary.ID {
		t.Fatalf("list = %+v", summaries)
	}

	// Issue a download link.
	resp = authedRequest(t, http.MethodPost, ts.URL+"/api/statements/"+summary.ID+"/download-link", auth.Token, nil, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue link status = %d", resp.StatusCode)
	}
	var link types.DownloadLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	resp.Body.Close()

	// Redeem without any session; expect a redirect to the signed URL.
	resp, err := noRedirectClient.Get(ts.URL + link.DownloadPath)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("download status = %d, want 302", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); !strings.HasPrefix(location, "https://storage.test/signed/") {
		t.Fatalf("redirect location = %s", location)
	}

	// Second redemption of the same link fails as if the token never existed.
	resp, err = noRedirectClient.Get(ts.URL + link.DownloadPath)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second download status = %d, want 404", resp.StatusCode)
	}

	// Delete the statement.
	resp = authedRequest(t, http.MethodDelete, ts.URL+"/api/statements/"+summary.ID, auth.Token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if len(backend.statements.statements) != 0 {
		t.Error("statement survived delete")
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/statements")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	ts, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"email":    "jane@example.com",
		"password": "correct-horse-battery",
		"fullName": "Jane Tester",
	})
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == accessTokenCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set on register")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie not http-only")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/statements", nil)
	req.AddCookie(sessionCookie)

	resp, err = noRedirectClient.Do(req)
	if err != nil {
		t.Fatalf("list with cookie: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts, _ := newTestServer(t)

	register(t, ts, "jane@example.com", "correct-horse-battery")

	cases := []map[string]string{
		{"email": "jane@example.com", "password": "wrong-password-entirely"},
		{"email": "nobody@example.com", "password": "correct-horse-battery"},
	}

	var bodies []string
	for _, payload := range cases {
		body, _ := json.Marshal(payload)
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("login status = %d, want 401", resp.StatusCode)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		bodies = append(bodies, string(raw))
	}

	// Unknown email and wrong password are indistinguishable.
	if bodies[0] != bodies[1] {
		t.Errorf("login error bodies differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestRegisterValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	register(t, ts, "jane@example.com", "correct-horse-battery")

	tests := []struct {
		name       string
		payload    map[string]string
		wantStatus int
	}{
		{
			name:       "missing email",
			payload:    map[string]string{"password": "long-enough-password"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "email without at sign",
			payload:    map[string]string{"email": "not-an-email", "password": "long-enough-password"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short password",
			payload:    map[string]string{"email": "joe@example.com", "password": "short"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate email",
			payload:    map[string]string{"email": "jane@example.com", "password": "long-enough-password"},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.payload)
			resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatalf("register: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts, backend := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")

	body, contentType := multipartUpload(t, "2024-01", "report.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte("PK\x03\x04"))
	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/statements/upload", auth.Token, body, contentType)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(backend.objects.objects) != 0 {
		t.Error("rejected upload reached the object store")
	}
}

func TestUploadJustOverLimitRejectedByVerifier(t *testing.T) {
	ts, backend := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")

	// Over the configured limit but inside the request-body bound, so the
	// verifier produces the validation error.
	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x20}, 10<<20)...)
	body, contentType := multipartUpload(t, "2024-01", "huge.pdf", "application/pdf", big)
	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/statements/upload", auth.Token, body, contentType)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(backend.objects.objects) != 0 {
		t.Error("oversized upload reached the object store")
	}
}

func TestUploadHugeBodyCutOff(t *testing.T) {
	ts, backend := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")

	// Far past the request-body bound. The server stops reading early, so
	// the client sees either a 400 or a terminated request; either way
	// nothing may reach storage.
	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0x20}, 16<<20)...)
	body, contentType := multipartUpload(t, "2024-01", "enormous.pdf", "application/pdf", big)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/statements/upload", body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	req.Header.Set("Content-Type", contentType)

	resp, err := noRedirectClient.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	}

	if len(backend.objects.objects) != 0 {
		t.Error("huge upload reached the object store")
	}
}

func TestUploadDuplicatePeriodConflict(t *testing.T) {
	ts, _ := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")
	uploadStatement(t, ts, auth.Token, "2024-01")

	body, contentType := multipartUpload(t, "2024-01", "statement.pdf", "application/pdf", []byte("%PDF-1.4\nagain"))
	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/statements/upload", auth.Token, body, contentType)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestIssueLinkTooManyActive(t *testing.T) {
	ts, _ := newTestServer(t)

	auth := register(t, ts, "jane@example.com", "correct-horse-battery")
	summary := uploadStatement(t, ts, auth.Token, "2024-01")

	url := ts.URL + "/api/statements/" + summary.ID + "/download-link"
	for i := 0; i < 5; i++ {
		resp := authedRequest(t, http.MethodPost, url, auth.Token, nil, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("issue link %d status = %d", i, resp.StatusCode)
		}
	}

	resp := authedRequest(t, http.MethodPost, url, auth.Token, nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestDownloadUnknownToken(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := noRedirectClient.Get(ts.URL + "/api/statements/download/definitely-not-a-token")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCannotTouchForeignStatement(t *testing.T) {
	ts, _ := newTestServer(t)

	owner := register(t, ts, "jane@example.com", "correct-horse-battery")
	intruder := register(t, ts, "joe@example.com", "another-long-password")

	summary := uploadStatement(t, ts, owner.Token, "2024-01")

	resp := authedRequest(t, http.MethodPost, ts.URL+"/api/statements/"+summary.ID+"/download-link", intruder.Token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign link status = %d, want 404", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodDelete, ts.URL+"/api/statements/"+summary.ID, intruder.Token, nil, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", resp.StatusCode)
	}
}

func TestNewRejectsMalformedCookieKeys(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &types.Config{
		JWTSecret:      "integration-test-signing-secret",
		CookieHashKey:  "%%% not base64 %%%",
		CookieBlockKey: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32)),
	}

	if _, err := New(config, logger, nil, nil, nil, ""); err == nil {
		t.Fatal("expected error for malformed cookie hash key")
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
