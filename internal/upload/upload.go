// Package upload reads multipart requests carrying a JSON "data" part and
// image files.
package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is 10 MiB plus room for the multipart envelope.
const DefaultMaxBytes = 10*1024*1024 + 1024

// DataField is the form field holding the JSON payload.
const DataField = "data"

// AllowedMimeTypes maps accepted content types to the extension used for the
// stored file.
var AllowedMimeTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// File is one accepted upload. Content type is sniffed from the bytes, never
// taken from the client.
type File struct {
	Field       string
	Name        string
	Content     []byte
	Ext         string
	ContentType string
}

type Form struct {
	Data  json.RawMessage
	Files []File
}

// Decode unmarshals the data part into v.
func (f *Form) Decode(v any) error {
	if len(f.Data) == 0 {
		return ErrMalformedJSON
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return nil
}

// Parse reads r as multipart, limited to maxBytes in total, and returns the
// data part plus every file under one of fields. A request that is not
// multipart yields an empty form so JSON-only callers can fall back.
func Parse(r *http.Request, maxBytes int64, fields ...string) (*Form, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if r.ContentLength > maxBytes {
		return nil, ErrBodyTooLarge
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, ErrBodyTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return &Form{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
	}
	defer r.MultipartForm.RemoveAll()

	form := &Form{}
	if vals := r.MultipartForm.Value[DataField]; len(vals) > 0 {
		raw := strings.TrimSpace(vals[0])
		if !json.Valid([]byte(raw)) {
			return nil, ErrMalformedJSON
		}
		form.Data = json.RawMessage(raw)
	}

	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			f, err := readFile(field, fh)
			if err != nil {
				return nil, err
			}
			form.Files = append(form.Files, f)
		}
	}
	return form, nil
}

func readFile(field string, fh *multipart.FileHeader) (File, error) {
	if fh.Size == 0 {
		return File{}, fmt.Errorf("%w: %s", ErrEmptyFile, fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	mt := mimetype.Detect(content)
	ext, ok := allowed(mt)
	if !ok {
		return File{}, fmt.Errorf("%w: %s is %s", ErrDisallowedFileType, fh.Filename, mt.String())
	}
	return File{
		Field:       field,
		Name:        fh.Filename,
		Content:     content,
		Ext:         ext,
		ContentType: mt.String(),
	}, nil
}

func allowed(mt *mimetype.MIME) (string, bool) {
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := AllowedMimeTypes[m.String()]; ok {
			return ext, true
		}
	}
	return "", false
}
