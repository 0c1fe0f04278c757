package template

import (
	"errors"
	"testing"
)

func TestParseSource(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind SourceKind
	}{
		{name: "relative path", in: "templates/doc.json", kind: SourceKindFile},
		{name: "absolute path", in: "/tmp/doc.json", kind: SourceKindFile},
		{name: "https url", in: "https://example.com/doc.json", kind: SourceKindURL},
		{name: "http url", in: "http://example.com/doc.json", kind: SourceKindURL},
		{name: "path with url-like name", in: "my-https-notes.json", kind: SourceKindFile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := ParseSource(tc.in)
			if err != nil {
				t.Fatalf("ParseSource(%q): %v", tc.in, err)
			}
			if src.Kind() != tc.kind {
				t.Fatalf("ParseSource(%q).Kind() = %q, want %q", tc.in, src.Kind(), tc.kind)
			}
		})
	}
}

func TestParseSourceRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "https://"} {
		var invalid *InvalidSourceError
		if _, err := ParseSource(in); !errors.As(err, &invalid) {
			t.Fatalf("ParseSource(%q) = %v, want InvalidSourceError", in, err)
		}
	}
}

func TestSourceFromURLRejectsOtherSchemes(t *testing.T) {
	var invalid *InvalidSourceError
	if _, err := SourceFromURL("ftp://example.com/doc.json"); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSourceError for ftp, got %v", err)
	}
}

func TestNewDocumentValidatesJSON(t *testing.T) {
	src := SourceFromFile("doc.json")

	if _, err := NewDocument(src, []byte(`{"version":"1.0"}`)); err != nil {
		t.Fatalf("valid JSON rejected: %v", err)
	}

	var invalid *InvalidSourceError
	if _, err := NewDocument(src, []byte("not json")); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSourceError for non-JSON payload, got %v", err)
	}
	if _, err := NewDocument(src, nil); err == nil {
		t.Fatal("empty payload accepted")
	}
	if _, err := NewDocument(nil, []byte("{}")); err == nil {
		t.Fatal("nil source accepted")
	}
}

func TestDocumentRawIsACopy(t *testing.T) {
	doc := MustNewDocument(SourceFromFile("doc.json"), []byte(`{"a":1}`))
	raw := doc.Raw()
	raw[0] = 'X'
	if string(doc.Raw()) != `{"a":1}` {
		t.Fatal("Raw returned a mutable reference to the payload")
	}
}
