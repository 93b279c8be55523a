package utils

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

const (
	MaxVerificationFileSize int64 = 15 << 20
	AllowedVerificationType       = "application/pdf"
)

// FileValidationError explains why an attachment was refused.
type FileValidationError struct {
	Reason string
}

func (e *FileValidationError) Error() string {
	return e.Reason
}

// ValidateVerificationFile accepts only PDFs of at most 15 MiB.
func ValidateVerificationFile(contentType string, size int64) error {
	if contentType != AllowedVerificationType {
		return &FileValidationError{Reason: "only PDF files are accepted for verification"}
	}
	if size > MaxVerificationFileSize {
		return &FileValidationError{Reason: "verification file must be 15MB or smaller"}
	}
	return nil
}

// IsStudentEmail reports whether the e-mail's domain is one of domains.
func IsStudentEmail(email string, domains []string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return slices.Contains(domains, email[at+1:])
}

// VerificationFilePath builds {user}/{review}-{millis}.pdf.
func VerificationFilePath(userID string, reviewID uint, at time.Time) string {
	if userID == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("%s/%d-%d.pdf", userID, reviewID, at.UnixMilli())
}
