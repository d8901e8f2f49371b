package upload

import (
	"errors"

	"ecos/internal/pkg/apperr"
)

var (
	ErrBodyTooLarge       = errors.New("request body exceeds maximum allowed size")
	ErrMalformedJSON      = errors.New("data field is not valid JSON")
	ErrMalformedForm      = errors.New("request is not a valid multipart form")
	ErrDisallowedFileType = errors.New("file type is not allowed")
	ErrEmptyFile          = errors.New("file is empty")
)

// AsAppError maps parse failures to caller-facing errors: an oversize body
// to PAYLOAD_TOO_LARGE, the rest to validation errors. Anything else is
// returned unchanged.
func AsAppError(err error) error {
	if errors.Is(err, ErrBodyTooLarge) {
		return apperr.New(apperr.KindTooLarge, err.Error(), err)
	}
	for _, known := range []error{ErrMalformedJSON, ErrMalformedForm, ErrDisallowedFileType, ErrEmptyFile} {
		if errors.Is(err, known) {
			return apperr.New(apperr.KindValidation, err.Error(), err)
		}
	}
	return err
}
