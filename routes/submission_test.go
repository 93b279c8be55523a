package routes

import (
	"bytes"
	"testing"

	"ratemylandlord-server/services"

	"github.com/stretchr/testify/assert"
)

type trackedFile struct {
	*bytes.Reader
	closed int
}

func (f *trackedFile) Close() error {
	f.closed++
	return nil
}

func TestCloseUploadReleasesFormFile(t *testing.T) {
	f := &trackedFile{Reader: bytes.NewReader([]byte("%PDF-1.7"))}
	closeUpload(&services.VerificationUpload{ContentType: "application/pdf", Size: 8, Body: f})
	assert.Equal(t, 1, f.closed)

	assert.NotPanics(t, func() { closeUpload(nil) })
	assert.NotPanics(t, func() {
		closeUpload(&services.VerificationUpload{Body: bytes.NewReader(nil)})
	})
}
