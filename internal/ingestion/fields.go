package ingestion

import (
	"io"
	"mime"
	"mime/multipart"
)

// Field is one form field of an upload request. Its bytes are read through
// the embedded reader and must be drained before the next field is fetched.
type Field interface {
	io.Reader
	FormName() string
	// FileName returns the raw filename parameter and whether one was sent.
	// An empty filename still marks a file field.
	FileName() (string, bool)
}

// FieldStream yields the fields of one request in arrival order. Next
// returns io.EOF once the stream is exhausted.
type FieldStream interface {
	Next() (Field, error)
}

type multipartFields struct {
	mr *multipart.Reader
}

// MultipartFields adapts a streaming multipart reader into a FieldStream.
func MultipartFields(mr *multipart.Reader) FieldStream {
	return &multipartFields{mr: mr}
}

func (m *multipartFields) Next() (Field, error) {
	part, err := m.mr.NextPart()
	if err != nil {
		return nil, err
	}
	return newMultipartField(part), nil
}

// multipartField reads the filename from the raw Content-Disposition so
// that path components and empty names reach sanitizing untouched.
type multipartField struct {
	*multipart.Part
	filename string
	isFile   bool
}

func newMultipartField(part *multipart.Part) *multipartField {
	f := &multipartField{Part: part}
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return f
	}
	f.filename, f.isFile = params["filename"]
	return f
}

func (f *multipartField) FileName() (string, bool) {
	return f.filename, f.isFile
}
