package ldif

import "io"

// SyntaxPolicy selects how the entry assembler reacts to a value that
// fails the attribute's syntax check (spec.md §6 "syntax.valueIsAcceptable").
type SyntaxPolicy int

const (
	// SyntaxPolicyOff skips the syntax-acceptability check entirely.
	SyntaxPolicyOff SyntaxPolicy = iota
	// SyntaxPolicyWarn logs the violation and keeps the value.
	SyntaxPolicyWarn
	// SyntaxPolicyReject makes a syntax violation record-fatal.
	SyntaxPolicyReject
)

// ImportConfig is the read-only policy contract the reader consults while
// parsing. A caller that only wants default RFC 2849 behavior can embed
// DefaultImportConfig and override the handful of methods it cares about.
type ImportConfig interface {
	// ValidateSchema reports whether assembled entries should be checked
	// against the attached Schema. When false, schema violations (and
	// duplicate attribute values) are silently tolerated.
	ValidateSchema() bool

	// IncludeAttributes, if non-empty, restricts assembled entries to
	// only these attribute types (case-insensitive). An empty slice
	// means "no restriction".
	IncludeAttributes() []string

	// ExcludeAttributes lists attribute types to drop from assembled
	// entries even if present in the input.
	ExcludeAttributes() []string

	// ExcludeDN reports whether an entry with this DN should be skipped
	// entirely (counted as ignored, never assembled). It is queried
	// before the entry is assembled, against the DN as written on the
	// "dn:" line (not yet schema-normalized).
	ExcludeDN(dn string) bool

	// ExcludeEntry is the second, post-assembly filter query
	// (spec.md §4.4 step 5, "includeEntry(entry)"): it runs against the
	// fully built Entry, once attribute filtering, implicit superior
	// object classes, and RDN completion have all been applied. A true
	// result routes the entry to the skip channel (counted as ignored,
	// never rejected) with reason as the skip-writer annotation.
	ExcludeEntry(entry *Entry) (reject bool, reason string)

	// SyntaxPolicy selects how a value that fails its attribute's
	// syntax check is handled.
	SyntaxPolicy() SyntaxPolicy

	// AllowURLScheme reports whether a "type:< scheme://..." value
	// reference may be dereferenced. Schemes are matched case-
	// insensitively and without the trailing colon, e.g. "file".
	AllowURLScheme(scheme string) bool

	// OpenURL dereferences an allowed URL reference and returns a reader
	// positioned at its content.
	OpenURL(rawURL string) (io.ReadCloser, error)

	// GenerateEntryUUID returns a value to stamp onto an assembled
	// entry's entryUUID attribute when the input didn't supply one, or
	// "" to leave the entry without one. This lets an import pipeline
	// assign entryUUID values the way a directory server does on
	// import, without this package depending on a UUID library itself.
	GenerateEntryUUID() string

	// NextReader hands back the next byte source to roll over to once
	// the current stream is exhausted, and false once there is none.
	// This lets an import span several files (or network sources)
	// without the caller having to concatenate them itself.
	NextReader() (io.Reader, bool)
}

// ImportPlugin lets a caller observe or veto entries as they are
// assembled, mirroring the plugin hook the original LDIF import pipeline
// this package's semantics are modeled on exposes to directory plugins.
type ImportPlugin interface {
	// BeginSession is called once, before the first record is read.
	// A non-nil error aborts the read before anything is parsed.
	BeginSession() error

	// EndSession is called once the reader has stopped producing
	// entries, whether because the stream was exhausted or because a
	// fatal error ended it early.
	EndSession()

	// PreImport is invoked once per assembled entry, after RDN
	// completion and before schema validation. Returning reject true
	// causes the entry to be rejected with reason in place of any
	// schema violation.
	PreImport(entry *Entry) (reject bool, reason string)
}

// DefaultImportConfig is a minimal ImportConfig with RFC 2849's plain
// behavior: schema validation on, no attribute filtering, no DN or entry
// exclusion, no syntax-policy enforcement, no URL schemes allowed, no
// source rollover. Embed it and override individual methods to customize.
type DefaultImportConfig struct{}

func (DefaultImportConfig) ValidateSchema() bool                 { return true }
func (DefaultImportConfig) IncludeAttributes() []string          { return nil }
func (DefaultImportConfig) ExcludeAttributes() []string          { return nil }
func (DefaultImportConfig) ExcludeDN(string) bool                 { return false }
func (DefaultImportConfig) ExcludeEntry(*Entry) (bool, string)   { return false, "" }
func (DefaultImportConfig) SyntaxPolicy() SyntaxPolicy           { return SyntaxPolicyOff }
func (DefaultImportConfig) AllowURLScheme(string) bool           { return false }
func (DefaultImportConfig) GenerateEntryUUID() string            { return "" }
func (DefaultImportConfig) NextReader() (io.Reader, bool)        { return nil, false }
func (DefaultImportConfig) OpenURL(string) (io.ReadCloser, error) {
	return nil, ErrURLSchemeDenied
}
