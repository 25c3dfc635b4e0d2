package statement

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"statementvault/pkg/types"
)

var pdfMagic = []byte("%PDF")

const allowedContentType = "application/pdf"

// VerifyStatement validates uploaded bytes and returns the base64-encoded
// SHA-256 digest of the exact byte sequence that will be stored. The declared
// content type is checked against the allow-list but never trusted: the file
// must also open with the PDF magic marker. Pure function, no side effects.
func VerifyStatement(data []byte, declaredType string, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: file is empty", types.ErrValidation)
	}

	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: file size exceeds maximum allowed size", types.ErrValidation)
	}

	if declaredType != allowedContentType {
		return "", fmt.Errorf("%w: only PDF files are allowed", types.ErrValidation)
	}

	if len(data) < len(pdfMagic) || !bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf("%w: invalid PDF file", types.ErrValidation)
	}

	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
