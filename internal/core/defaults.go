package core

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed default_document.json
var defaultDocumentJSON []byte

var defaultDocument = mustDecodeDefault()

func mustDecodeDefault() Document {
	doc, err := DecodeDocument(defaultDocumentJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default document: %v", err))
	}
	return doc
}

// DefaultDocument returns the bundled initial document. Each call returns a
// fresh copy.
func DefaultDocument() Document {
	return defaultDocument.Clone()
}

// DecodeDocument parses a persisted document and normalizes it.
func DecodeDocument(b []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc.Normalize(), nil
}

// EncodeDocument serializes a document for persistence.
func EncodeDocument(doc Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}
