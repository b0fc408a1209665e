package ldif

// Schema is the read-only contract the entry assembler consumes to check
// schema conformance. It is deliberately narrow: this package never sees
// a concrete schema type, only this interface, so it can run unchanged
// against any schema implementation (or none, if ValidateSchema() on the
// attached ImportConfig is false).
type Schema interface {
	// AttributeType resolves a bare attribute type name (no options) to
	// its definition. ok is false if the type is unknown to the schema.
	AttributeType(name string) (AttributeTypeInfo, bool)

	// ObjectClass resolves an object class name or OID. ok is false if
	// the class is unknown to the schema.
	ObjectClass(name string) (ObjectClassInfo, bool)

	// ValidateEntry checks a fully assembled entry (DN plus attribute
	// type -> values) for schema conformance: required structural class,
	// MUST/MAY enforcement, single-valuedness, and syntax. It returns a
	// descriptive error, or nil if the entry conforms.
	ValidateEntry(dn string, attrs map[string][][]byte) error

	// ValueIsAcceptable checks one decoded value against typeName's
	// syntax, independent of the whole-entry ValidateEntry pass. ok is
	// true if the schema has no opinion (unknown type, no syntax
	// validator); reason is set only when ok is false.
	ValueIsAcceptable(typeName string, value []byte) (ok bool, reason string)
}

// AttributeTypeInfo is the subset of an attribute type definition the
// entry assembler needs in order to route and validate a value.
type AttributeTypeInfo struct {
	Name                string
	SingleValued        bool
	IsObjectClassType   bool // true only for the "objectClass" type itself
	BEREncodingRequired bool
	IsOperational       bool
}

// ObjectClassInfo is the subset of an object class definition the entry
// assembler needs to add implicit superiors.
type ObjectClassInfo struct {
	Name        string
	Superior    string
	HasSuperior bool
}
