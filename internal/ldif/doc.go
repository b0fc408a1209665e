// Package ldif implements a streaming reader for the LDAP Data Interchange
// Format (RFC 2849). It turns a byte stream into a sequence of Entry or
// ChangeRecord values without ever materializing the whole file in memory,
// and without knowing anything about how those values get stored.
//
// The reader is organized as a small pipeline: a line source folds line
// continuations and strips comments, a record framer groups lines into
// attr/value records separated by blank lines, a value decoder turns the
// three RFC 2849 value encodings (plain, base64, URL) into bytes, and an
// entry assembler builds the typed result and, if a Schema is attached,
// checks it for schema conformance.
//
// Storage, indexing, the LDAP wire protocol, and schema compilation are
// out of scope here; this package only consumes those concerns through the
// Schema, ImportConfig, and ImportPlugin interfaces.
package ldif
