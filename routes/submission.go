package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ratemylandlord-server/services"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

const verificationFileField = "verificationFile"

type landlordSubmission struct {
	Landlord services.LandlordInput `json:"landlord"`
	Review   *services.ReviewInput  `json:"review,omitempty"`
}

func isMultipart(ctx iris.Context) bool {
	return strings.HasPrefix(ctx.GetHeader("Content-Type"), "multipart/form-data")
}

// readPart decodes one JSON form field. Missing optional parts leave dst
// untouched and report false.
func readPart(ctx iris.Context, name string, dst interface{}, required bool) (bool, error) {
	raw := ctx.FormValue(name)
	if raw == "" {
		if required {
			return false, errors.New("missing form field " + name)
		}
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, err
	}
	return true, nil
}

// readVerificationFile returns the attached document of a multipart
// request, or nil when none was sent. The caller releases it with
// closeUpload.
func readVerificationFile(ctx iris.Context) (*services.VerificationUpload, error) {
	file, header, err := ctx.FormFile(verificationFileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &services.VerificationUpload{
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

// closeUpload releases the form file behind u, if any.
func closeUpload(u *services.VerificationUpload) {
	if u == nil {
		return
	}
	if c, ok := u.Body.(io.Closer); ok {
		c.Close()
	}
}

// readLandlordSubmission accepts multipart (parts "landlord", "review" and
// the file) or a JSON body.
func readLandlordSubmission(ctx iris.Context) (*landlordSubmission, *services.VerificationUpload, error) {
	var in landlordSubmission
	if !isMultipart(ctx) {
		if err := ctx.ReadJSON(&in); err != nil {
			return nil, nil, err
		}
		return &in, nil, nil
	}

	if _, err := readPart(ctx, "landlord", &in.Landlord, true); err != nil {
		return nil, nil, err
	}
	var review services.ReviewInput
	ok, err := readPart(ctx, "review", &review, false)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		in.Review = &review
	}
	if err := utils.Validate(&in); err != nil {
		return nil, nil, err
	}

	file, err := readVerificationFile(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &in, file, nil
}

// readReviewSubmission accepts multipart (part "review" and the file) or a
// JSON review body.
func readReviewSubmission(ctx iris.Context) (*services.ReviewInput, *services.VerificationUpload, error) {
	var in services.ReviewInput
	if !isMultipart(ctx) {
		if err := ctx.ReadJSON(&in); err != nil {
			return nil, nil, err
		}
		return &in, nil, nil
	}

	if _, err := readPart(ctx, "review", &in, true); err != nil {
		return nil, nil, err
	}
	if err := utils.Validate(&in); err != nil {
		return nil, nil, err
	}

	file, err := readVerificationFile(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &in, file, nil
}
