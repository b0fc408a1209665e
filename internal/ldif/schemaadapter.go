package ldif

import (
	"fmt"
	"strings"

	"github.com/oba-directory/oba/internal/schema"
)

// SchemaAdapter adapts the directory's compiled *schema.Schema to the
// narrow Schema interface this package consumes, so the entry assembler
// never imports internal/schema's concrete types directly. Entry-level
// conformance checking is delegated straight to schema.Validator, which
// already implements the MUST/MAY, single-value, and syntax rules this
// package needs — there is no reason to reimplement them here.
type SchemaAdapter struct {
	schema    *schema.Schema
	validator *schema.Validator
}

// NewSchemaAdapter wraps s. A Validator is built over the same schema so
// ValidateEntry can be implemented directly in terms of it.
func NewSchemaAdapter(s *schema.Schema) *SchemaAdapter {
	return &SchemaAdapter{schema: s, validator: schema.NewValidator(s)}
}

// AttributeType implements Schema.
func (a *SchemaAdapter) AttributeType(name string) (AttributeTypeInfo, bool) {
	at := a.schema.GetAttributeType(name)
	if at == nil {
		return AttributeTypeInfo{}, false
	}
	syn := a.schema.GetSyntax(a.schema.GetEffectiveSyntax(at.Name))
	info := AttributeTypeInfo{
		Name:              at.Name,
		SingleValued:      at.SingleValue,
		IsObjectClassType: at.Name == "objectClass",
		IsOperational:     at.IsOperational(),
	}
	if syn != nil {
		info.BEREncodingRequired = syn.BEREncodingRequired
	}
	return info, true
}

// ValueIsAcceptable implements Schema by delegating to the attribute
// type's effective syntax validator, if any.
func (a *SchemaAdapter) ValueIsAcceptable(typeName string, value []byte) (bool, string) {
	at := a.schema.GetAttributeType(typeName)
	if at == nil {
		return true, ""
	}
	syn := a.schema.GetSyntax(a.schema.GetEffectiveSyntax(at.Name))
	if syn == nil || !syn.HasValidator() {
		return true, ""
	}
	if syn.Validate(value) {
		return true, ""
	}
	return false, fmt.Sprintf("value does not conform to the %s syntax", syn.Description)
}

// ObjectClass implements Schema.
func (a *SchemaAdapter) ObjectClass(name string) (ObjectClassInfo, bool) {
	oc := a.schema.GetObjectClass(name)
	if oc == nil {
		return ObjectClassInfo{}, false
	}
	return ObjectClassInfo{
		Name:        oc.Name,
		Superior:    oc.Superior,
		HasSuperior: oc.Superior != "",
	}, true
}

// ValidateEntry implements Schema by building a schema.Entry from the
// flattened attribute map and delegating to schema.Validator.ValidateEntry.
// The objectClass key is canonicalized regardless of how the caller
// declared it, since the validator looks it up by that exact name.
func (a *SchemaAdapter) ValidateEntry(dn string, attrs map[string][][]byte) error {
	e := schema.NewEntry(dn)
	for name, values := range attrs {
		if strings.EqualFold(name, "objectClass") {
			name = "objectClass"
		}
		e.SetAttribute(name, values...)
	}
	return a.validator.ValidateEntry(e)
}
