// Package document converts uploaded binary documents to a transport- and
// storage-safe textual encoding with paired content-type metadata.
package document

import (
	"encoding/base64"
	"errors"

	"onboarding/pkg/platform/sentinel"
)

// ErrMalformed reports corrupt encoded text, as opposed to a document that
// was never supplied (sentinel.ErrNotFound).
var ErrMalformed = errors.New("malformed document data")

// Type names the three document slots an application may carry.
type Type string

const (
	TypePassportPhoto Type = "passport"
	TypePANDocument   Type = "pan"
	TypeAadhaarProof  Type = "aadhaar"
)

// ParseType validates a document slot name from a URL path segment.
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypePassportPhoto, TypePANDocument, TypeAadhaarProof:
		return Type(s), true
	}
	return "", false
}

// Encoded is a stored document: base64 payload plus declared content type.
// The zero value means "slot empty".
type Encoded struct {
	Base64      string `json:"base64,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// IsEmpty reports whether the slot holds no document.
func (e Encoded) IsEmpty() bool {
	return e.Base64 == ""
}

// Encode converts raw bytes into the stored representation.
func Encode(raw []byte, contentType string) Encoded {
	if len(raw) == 0 {
		return Encoded{}
	}
	return Encoded{
		Base64:      base64.StdEncoding.EncodeToString(raw),
		ContentType: contentType,
	}
}

// Decode reverses Encode for retrieval. An empty slot returns
// sentinel.ErrNotFound; corrupt base64 returns ErrMalformed so callers can
// distinguish "absent" from "damaged".
func Decode(enc Encoded) ([]byte, string, error) {
	if enc.IsEmpty() {
		return nil, "", sentinel.ErrNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(enc.Base64)
	if err != nil {
		return nil, "", ErrMalformed
	}
	return raw, enc.ContentType, nil
}
