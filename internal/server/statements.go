package server

import (
	"io"
	"net/http"

	"statementvault/internal/statement"
)

type uploadForm struct {
	Period string `form:"period"`
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID, err := s.customerIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("customer id not found in context")
		s.respondJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	// Bound the whole request body; ParseMultipartForm alone only caps
	// in-memory buffering and would spool an oversized body to disk. One
	// spare MiB so a file just over the limit still reaches the verifier
	// and fails with the proper validation error.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes + 1<<20); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody("malformed multipart request"))
		return
	}

	var uploadReq uploadForm
	if err := decoder.Decode(&uploadReq, r.MultipartForm.Value); err != nil {
		s.logger.WithError(err).Error("failed to decode upload form")
		s.respondJSON(w, http.StatusBadRequest, errorBody("malformed upload form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorBody("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.WithError(err).Error("failed to read uploaded file")
		s.respondJSON(w, http.StatusBadRequest, errorBody("failed to read uploaded file"))
		return
	}

	summary, err := s.core.Upload(ctx, statement.UploadInput{
		CustomerID:  customerID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Period:      uploadReq.Period,
		Data:        data,
		ClientAddr:  clientAddress(r),
		UserAgent:   r.UserAgent(),
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, summary)
}

func (s *Service) handleListStatements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID, err := s.customerIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("customer id not found in context")
		s.respondJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	summaries, err := s.core.Statements(ctx, customerID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, summaries)
}

func (s *Service) handleIssueLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID, err := s.customerIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("customer id not found in context")
		s.respondJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	statementID := r.PathValue("statementID")

	link, err := s.core.IssueLink(ctx, customerID, statementID, clientAddress(r), r.UserAgent())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, link)
}

// handleDownload redeems a single-use token and redirects the caller to the
// short-lived signed storage URL. No session is required; the token is the
// credential.
func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenValue := r.PathValue("token")

	signedURL, err := s.core.Redeem(ctx, tokenValue, clientAddress(r), r.UserAgent())
	if err != nil {
		s.respondError(w, err)
		return
	}

	http.Redirect(w, r, signedURL, http.StatusFound)
}

func (s *Service) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	customerID, err := s.customerIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("customer id not found in context")
		s.respondJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}

	statementID := r.PathValue("statementID")

	if err := s.core.Delete(ctx, customerID, statementID, clientAddress(r), r.UserAgent()); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
