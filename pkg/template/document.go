package template

import (
	"encoding/json"
	"errors"
)

// Document wraps a raw template payload and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument constructs a Document wrapper while validating the inputs. The
// payload must be well-formed JSON; templates are always JSON documents.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("template: source is required")
	}
	if len(raw) == 0 {
		return Document{}, errors.New("template: raw document is empty")
	}
	if !json.Valid(raw) {
		return Document{}, &InvalidSourceError{Value: src.Location(), Reason: "document is not valid JSON"}
	}

	clone := append([]byte(nil), raw...)
	return Document{source: src, raw: clone}, nil
}

// MustNewDocument panics if the document cannot be created. Useful for tests.
func MustNewDocument(src Source, raw []byte) Document {
	doc, err := NewDocument(src, raw)
	if err != nil {
		panic(err)
	}
	return doc
}

// Source returns the origin metadata for the document.
func (d Document) Source() Source {
	return d.source
}

// Raw returns a defensive copy of the payload.
func (d Document) Raw() []byte {
	return append([]byte(nil), d.raw...)
}

// InvalidSourceError reports a template source that cannot be used.
type InvalidSourceError struct {
	Value  string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return "template: invalid source " + e.Value + ": " + e.Reason
}
