package ldif

import (
	"fmt"
	"strings"

	"github.com/oba-directory/oba/internal/logging"
)

// Entry is a fully assembled LDIF entry: a distinguished name and its
// attributes in the order they were declared in the input.
type Entry struct {
	DN         DN
	Attributes []Attribute

	// Line is the 1-based physical line number the entry's "dn:" line
	// started on, for diagnostics and for RejectEntry bookkeeping.
	Line int
}

// Values returns the concatenation, in declaration order, of every
// value recorded under any AttrDescription whose Type matches typ
// case-insensitively. This collapses option variants (e.g. "cn" and
// "cn;lang-fr") the way schema validation needs to see all values of an
// attribute type together.
func (e *Entry) Values(typ string) [][]byte {
	typ = strings.ToLower(typ)
	var out [][]byte
	for _, a := range e.Attributes {
		if strings.ToLower(a.Desc.Type) == typ {
			out = append(out, a.Values...)
		}
	}
	return out
}

// HasAttribute reports whether the entry carries any value for the given
// attribute type, regardless of options.
func (e *Entry) HasAttribute(typ string) bool {
	return len(e.Values(typ)) > 0
}

// asValidationMap flattens the entry into the type -> values shape the
// Schema interface's ValidateEntry expects, merging option variants of
// the same type the way Values does. The map key keeps the first-seen
// declared casing of the type rather than forcing lowercase, since the
// schema validator looks "objectClass" up by its canonical name.
func (e *Entry) asValidationMap() map[string][][]byte {
	m := make(map[string][][]byte, len(e.Attributes))
	keys := make(map[string]string, len(e.Attributes))
	for _, a := range e.Attributes {
		lower := strings.ToLower(a.Desc.Type)
		key, ok := keys[lower]
		if !ok {
			key = a.Desc.Type
			keys[lower] = key
		}
		m[key] = append(m[key], a.Values...)
	}
	return m
}

// assembleEntry implements the Entry Assembler: it turns a framed record
// into an Entry, applying attribute filtering, implicit superior object
// classes, RDN completion, and (when cfg says to) schema conformance
// checking.
//
// The phase shape mirrors how the reader thinks about a record: HEADER
// extracts and parses the dn line, BODY decodes and buckets every
// remaining line, RDN-COMPLETE and FILTER apply the structural and
// policy checks spec.md §4.4 runs against the fully built entry,
// VALIDATE runs the plugin hook and schema check, and EMIT hands back
// the typed result. Returning an *entryFiltered error signals policy
// exclusion rather than a parse failure; the reader routes it to the
// skip channel instead of the reject channel.
func assembleEntry(rec *record, cfg ImportConfig, sch Schema, plugin ImportPlugin, logger logging.Logger) (*Entry, error) {
	if len(rec.lines) == 0 {
		return nil, newParseError(rec.startLine, true, ErrMissingDN)
	}

	// HEADER
	head := rec.lines[0]
	field, err := decodeField(head.text, cfg)
	if err != nil {
		return nil, newParseError(head.line, true, err)
	}
	if !strings.EqualFold(field.desc, "dn") || len(field.value) == 0 {
		return nil, newParseError(head.line, true, ErrMissingDN)
	}
	dn, err := ParseDN(string(field.value))
	if err != nil {
		return nil, newParseError(head.line, true, err)
	}
	// recordDN only catches a plain "dn:" line cheaply, before assembly;
	// a base64-encoded "dn::" line reaches this exclusion check here,
	// against the decoded value, instead.
	if cfg.ExcludeDN(dn.String()) {
		return nil, &entryFiltered{reason: "dn excluded: " + dn.String()}
	}

	include := attrSet(cfg.IncludeAttributes())
	exclude := attrSet(cfg.ExcludeAttributes())
	validating := cfg.ValidateSchema()
	syntaxPolicy := cfg.SyntaxPolicy()
	if logger == nil {
		logger = logging.NewNop()
	}

	// BODY
	builder := NewAttributeBuilder()
	var objectClassDesc AttrDescription
	haveObjectClassDesc := false

	for _, ll := range rec.lines[1:] {
		f, err := decodeField(ll.text, cfg)
		if err != nil {
			return nil, newParseError(ll.line, true, err)
		}
		desc := ParseAttrDescription(f.desc)
		typLower := strings.ToLower(desc.Type)

		if len(include) > 0 && !include[typLower] {
			continue
		}
		if exclude[typLower] {
			continue
		}

		if typLower == "objectclass" && !haveObjectClassDesc {
			objectClassDesc = desc
			haveObjectClassDesc = true
		}

		if sch != nil {
			if at, ok := sch.AttributeType(desc.Type); ok {
				if at.BEREncodingRequired && !desc.Binary() {
					desc.Options = append(append([]string(nil), desc.Options...), "binary")
				} else if desc.Binary() && !at.BEREncodingRequired {
					return nil, newParseError(ll.line, true, ErrBinaryOptionDenied)
				}
			}
			if syntaxPolicy != SyntaxPolicyOff {
				if ok, reason := sch.ValueIsAcceptable(desc.Type, f.value); !ok {
					if syntaxPolicy == SyntaxPolicyReject {
						return nil, newParseError(ll.line, true, fmt.Errorf("%w: %s", ErrSyntaxViolation, reason))
					}
					logger.Warn("syntax violation tolerated", "line", ll.line, "attribute", desc.Type, "reason", reason)
				}
			}
		}

		if !builder.AddValue(desc, f.value, validating) && validating {
			return nil, newParseError(ll.line, true, ErrDuplicateValue)
		}
	}

	// Missing superior object classes are added implicitly so that
	// schema validation (and any consumer walking Attributes) sees the
	// full chain even when the LDIF author only listed the leaf class.
	if sch != nil && haveObjectClassDesc {
		for _, oc := range builder.Build() {
			if !strings.EqualFold(oc.Desc.Type, "objectclass") {
				continue
			}
			seen := make(map[string]bool, len(oc.Values))
			queue := make([]string, 0, len(oc.Values))
			for _, v := range oc.Values {
				name := string(v)
				seen[strings.ToLower(name)] = true
				queue = append(queue, name)
			}
			for len(queue) > 0 {
				name := queue[0]
				queue = queue[1:]
				info, ok := sch.ObjectClass(name)
				if !ok || !info.HasSuperior {
					continue
				}
				if seen[strings.ToLower(info.Superior)] {
					continue
				}
				seen[strings.ToLower(info.Superior)] = true
				builder.AddValue(objectClassDesc, []byte(info.Superior), false)
				queue = append(queue, info.Superior)
			}
			break
		}
	}

	// A directory importing fresh content typically wants every entry to
	// carry an entryUUID even if the LDIF author didn't supply one; the
	// generator is supplied by the caller so this package doesn't need
	// a UUID dependency of its own.
	if !builder.Has("entryuuid") {
		if id := cfg.GenerateEntryUUID(); id != "" {
			builder.AddValue(AttrDescription{Type: "entryUUID"}, []byte(id), false)
		}
	}

	// RDN-COMPLETE (spec.md §4.4 step 6): every AVA in the entry's own
	// RDN must appear in its attribute map, even if the LDIF author only
	// wrote it into the "dn:" line and never repeated it as its own
	// attribute line.
	for _, ava := range dn.RDN().AVAs() {
		found := false
		for _, a := range builder.Build() {
			if !strings.EqualFold(a.Desc.Type, ava.Type) {
				continue
			}
			for _, v := range a.Values {
				if string(v) == ava.Value {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			builder.AddValue(AttrDescription{Type: ava.Type}, []byte(ava.Value), false)
		}
	}

	entry := &Entry{DN: dn, Attributes: builder.Build(), Line: head.line}

	// FILTER: the second, post-assembly filter query runs against the
	// fully built entry (spec.md §4.4 step 5, "includeEntry(entry)").
	if reject, reason := cfg.ExcludeEntry(entry); reject {
		return nil, &entryFiltered{reason: reason}
	}

	// VALIDATE
	if plugin != nil {
		if reject, reason := plugin.PreImport(entry); reject {
			return nil, newParseError(head.line, true, fmt.Errorf("%w: %s", ErrPluginRejected, reason))
		}
	}
	if validating {
		if sch == nil {
			return nil, newParseError(head.line, true, ErrNoSchemaAttached)
		}
		if err := sch.ValidateEntry(dn.String(), entry.asValidationMap()); err != nil {
			return nil, newParseError(head.line, true, err)
		}
	}

	// EMIT
	return entry, nil
}

func attrSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = true
	}
	return m
}
