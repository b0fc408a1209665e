package ldif

import (
	"encoding/base64"
	"io"
	"net/url"
	"strings"
)

// decodedField is one attrdesc/value pair after the RFC 2849 value
// encoding (plain, base64, or URL reference) has been resolved to bytes.
type decodedField struct {
	desc  string // attribute description as written, e.g. "cn" or "jpegPhoto;binary"
	value []byte
}

// decodeField splits a logical "attrdesc: value" line and decodes its
// value according to which of the three RFC 2849 forms was used:
//
//	attrdesc: value          plain UTF-8
//	attrdesc:: base64        base64-encoded octets
//	attrdesc:< url           a reference to fetch the value from
//
// cfg governs whether URL references may be dereferenced at all, and if
// so which schemes and how to open them.
func decodeField(text string, cfg ImportConfig) (decodedField, error) {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return decodedField{}, ErrMissingColon
	}
	desc := text[:idx]
	rest := text[idx+1:]

	switch {
	case strings.HasPrefix(rest, ":"):
		encoded := stripLeadingSpaces(rest[1:])
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return decodedField{}, ErrBadBase64
		}
		return decodedField{desc: desc, value: decoded}, nil

	case strings.HasPrefix(rest, "<"):
		raw := stripLeadingSpaces(rest[1:])
		value, err := dereferenceURL(raw, cfg)
		if err != nil {
			return decodedField{}, err
		}
		return decodedField{desc: desc, value: value}, nil

	default:
		return decodedField{desc: desc, value: []byte(stripLeadingSpaces(rest))}, nil
	}
}

// stripLeadingSpaces removes every leading space character, matching RFC
// 2849's "value-spec" rule (a single mandatory SEP space followed by the
// value proper, where further leading spaces belong to the separator, not
// the value) and the original LDIFReader's findFirstNonSpaceCharPosition,
// which skips all leading spaces identically for plain, base64, and URL
// forms.
func stripLeadingSpaces(s string) string {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return s[i:]
}

// dereferenceURL fetches the content a "attrdesc:< url" value points at,
// subject to the import configuration's scheme allow-list.
func dereferenceURL(raw string, cfg ImportConfig) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrBadURL
	}
	scheme := strings.ToLower(u.Scheme)
	if cfg == nil || !cfg.AllowURLScheme(scheme) {
		return nil, ErrURLSchemeDenied
	}
	rc, err := cfg.OpenURL(raw)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
