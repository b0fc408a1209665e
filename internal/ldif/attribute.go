package ldif

import (
	"sort"
	"strings"
)

// AttrDescription is an attribute type name together with its option tags,
// e.g. "jpegPhoto;binary" or "cn;lang-fr;lang-en". Options are unordered:
// two descriptions with the same type and the same set of lower-cased
// option tags name the same attribute, no matter what order they were
// written in.
type AttrDescription struct {
	Type    string
	Options []string
}

// ParseAttrDescription splits "type;opt1;opt2" into its type and option
// tags. Option tags are lower-cased since RFC 2849/4512 treat them
// case-insensitively.
func ParseAttrDescription(s string) AttrDescription {
	parts := strings.Split(s, ";")
	ad := AttrDescription{Type: parts[0]}
	if len(parts) > 1 {
		ad.Options = make([]string, len(parts)-1)
		for i, o := range parts[1:] {
			ad.Options[i] = strings.ToLower(o)
		}
	}
	return ad
}

// String renders the description back in "type;opt1;opt2" form, with
// options sorted for a stable representation.
func (ad AttrDescription) String() string {
	if len(ad.Options) == 0 {
		return ad.Type
	}
	opts := append([]string(nil), ad.Options...)
	sort.Strings(opts)
	return ad.Type + ";" + strings.Join(opts, ";")
}

// HasOption reports whether the given lower-case option tag is present.
func (ad AttrDescription) HasOption(opt string) bool {
	for _, o := range ad.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Binary reports whether the "binary" transfer option is present, which
// forces BER-encoded transport for the attribute's values.
func (ad AttrDescription) Binary() bool {
	return ad.HasOption("binary")
}

// key returns a canonical string usable as a map key: lower-cased type
// plus its options sorted and lower-cased, so two descriptions that name
// the same attribute produce the same key regardless of option order.
func (ad AttrDescription) key() string {
	opts := append([]string(nil), ad.Options...)
	sort.Strings(opts)
	return strings.ToLower(ad.Type) + ";" + strings.Join(opts, ";")
}

// Attribute is a fully assembled attribute from an entry: one description
// and all of its decoded values.
type Attribute struct {
	Desc   AttrDescription
	Values [][]byte
}

// attrBucket accumulates the values seen for one AttrDescription while an
// entry's body lines are read. AttributeBuilder keeps buckets in an
// ordered map (insertion-order slice backed by a lookup map) so the
// assembled entry's attribute order matches the order attributes first
// appeared in the LDIF record, which is the order exporters and diff
// tools expect.
type attrBucket struct {
	desc   AttrDescription
	values [][]byte
	seen   map[string]bool // value dedup, only populated when schema checking wants it
}

// AttributeBuilder accumulates attribute values for the entry currently
// being assembled and, on Build, hands back the attributes in first-seen
// order.
type AttributeBuilder struct {
	order   []string
	buckets map[string]*attrBucket
}

// NewAttributeBuilder returns an empty builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{buckets: make(map[string]*attrBucket)}
}

// AddValue records one value for the given attribute description. It
// returns false, without adding the value, when dedupe is true and an
// identical value was already recorded for this description — the
// single hook the entry assembler uses to implement the "duplicate value
// is silently ignored when schema checking is off, rejected when it is
// on" behavior from a single code path.
func (b *AttributeBuilder) AddValue(desc AttrDescription, value []byte, dedupe bool) bool {
	k := desc.key()
	bucket, ok := b.buckets[k]
	if !ok {
		bucket = &attrBucket{desc: desc}
		if dedupe {
			bucket.seen = make(map[string]bool)
		}
		b.buckets[k] = bucket
		b.order = append(b.order, k)
	}
	if dedupe {
		if bucket.seen == nil {
			bucket.seen = make(map[string]bool, len(bucket.values))
			for _, v := range bucket.values {
				bucket.seen[string(v)] = true
			}
		}
		if bucket.seen[string(value)] {
			return false
		}
		bucket.seen[string(value)] = true
	}
	bucket.values = append(bucket.values, value)
	return true
}

// Has reports whether any value has been recorded for the given
// attribute type, regardless of options.
func (b *AttributeBuilder) Has(typ string) bool {
	typ = strings.ToLower(typ)
	for _, k := range b.order {
		if strings.HasPrefix(k, typ+";") {
			return true
		}
	}
	return false
}

// Build returns the accumulated attributes in first-seen order.
func (b *AttributeBuilder) Build() []Attribute {
	attrs := make([]Attribute, 0, len(b.order))
	for _, k := range b.order {
		bucket := b.buckets[k]
		attrs = append(attrs, Attribute{Desc: bucket.desc, Values: bucket.values})
	}
	return attrs
}
