package ldif

import "strings"

// AVA is a single attribute-value assertion within an RDN, e.g. "cn=Babs".
// Type is kept in the case it was written in; comparisons always fold to
// lower case so two AVAs are considered equal iff their types fold equal
// and their values are byte-equal after normalization.
type AVA struct {
	Type  string
	Value string
}

func (a AVA) String() string {
	return a.Type + "=" + escapeAVAValue(a.Value)
}

func (a AVA) normalized() AVA {
	return AVA{Type: strings.ToLower(a.Type), Value: normalizeDNValue(a.Value)}
}

// RDN is a relative distinguished name: one or more AVAs joined by "+".
// Order of the AVAs as written is preserved for String(), but Equal
// compares them as an unordered set since RFC 4514 does not order
// multi-valued RDNs.
type RDN struct {
	avas []AVA
}

// NewRDN builds an RDN from one or more AVAs.
func NewRDN(avas ...AVA) RDN {
	return RDN{avas: append([]AVA(nil), avas...)}
}

// Add appends another AVA to a multi-valued RDN.
func (r *RDN) Add(ava AVA) {
	r.avas = append(r.avas, ava)
}

// AVAs returns the RDN's attribute-value assertions in declaration order.
func (r RDN) AVAs() []AVA {
	return append([]AVA(nil), r.avas...)
}

func (r RDN) String() string {
	parts := make([]string, len(r.avas))
	for i, a := range r.avas {
		parts[i] = a.String()
	}
	return strings.Join(parts, "+")
}

// Equal reports whether two RDNs name the same entry: same number of
// AVAs, each type folding equal and each value byte-equal after
// normalization, regardless of declaration order.
func (r RDN) Equal(other RDN) bool {
	if len(r.avas) != len(other.avas) {
		return false
	}
	used := make([]bool, len(other.avas))
	for _, a := range r.avas {
		na := a.normalized()
		found := false
		for i, b := range other.avas {
			if used[i] {
				continue
			}
			if na == b.normalized() {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DN is a distinguished name: a sequence of RDNs from the entry's own RDN
// down to (but not including) the root. RDNs are stored in the order they
// appear when written left to right, i.e. rdns[0] is the entry's own RDN.
type DN struct {
	rdns []RDN
}

// ParseDN parses a DN string per the RFC 4514 grammar subset LDIF needs:
// RDNs separated by unescaped commas, AVAs within an RDN separated by
// unescaped pluses, values may carry backslash escapes.
func ParseDN(s string) (DN, error) {
	if s == "" {
		return DN{}, nil
	}
	rdnStrs, err := splitUnescaped(s, ',')
	if err != nil {
		return DN{}, err
	}
	rdns := make([]RDN, 0, len(rdnStrs))
	for _, rs := range rdnStrs {
		avaStrs, err := splitUnescaped(rs, '+')
		if err != nil {
			return DN{}, err
		}
		var rdn RDN
		for _, as := range avaStrs {
			ava, err := parseAVA(as)
			if err != nil {
				return DN{}, err
			}
			rdn.Add(ava)
		}
		rdns = append(rdns, rdn)
	}
	return DN{rdns: rdns}, nil
}

func parseAVA(s string) (AVA, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return AVA{}, &ParseError{Message: "malformed RDN component: " + s, Err: ErrMissingDN}
	}
	typ := strings.TrimSpace(s[:eq])
	val := strings.TrimSpace(s[eq+1:])
	return AVA{Type: typ, Value: unescapeDNValue(val)}, nil
}

// splitUnescaped splits s on sep, treating a backslash as escaping the
// following rune so that separators inside an escaped value are ignored.
func splitUnescaped(s string, sep byte) ([]string, error) {
	var parts []string
	var cur strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case c == '\\':
			cur.WriteByte(c)
			escaped = true
		case c == sep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if escaped {
		return nil, ErrBadModifySpec
	}
	parts = append(parts, cur.String())
	return parts, nil
}

func unescapeDNValue(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			out.WriteByte(s[i])
			continue
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

func escapeAVAValue(v string) string {
	var out strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			out.WriteByte('\\')
		}
		out.WriteByte(c)
	}
	return out.String()
}

// normalizeDNValue folds whitespace the way RFC 4514 string representation
// requires: leading/trailing space trimmed, internal runs of space
// collapsed to one. It does not lower-case the value; attribute-specific
// case folding is the caller's responsibility via the schema's equality
// matching rule, which this package does not implement.
func normalizeDNValue(v string) string {
	fields := strings.Fields(v)
	return strings.Join(fields, " ")
}

// RDNs returns the DN's relative distinguished names, own RDN first.
func (d DN) RDNs() []RDN {
	return append([]RDN(nil), d.rdns...)
}

// IsZero reports whether the DN is the empty (root) DN.
func (d DN) IsZero() bool {
	return len(d.rdns) == 0
}

func (d DN) String() string {
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Equal reports whether two DNs name the same entry: same number of RDNs,
// pairwise Equal in the same position.
func (d DN) Equal(other DN) bool {
	if len(d.rdns) != len(other.rdns) {
		return false
	}
	for i := range d.rdns {
		if !d.rdns[i].Equal(other.rdns[i]) {
			return false
		}
	}
	return true
}

// Parent returns the DN with its own RDN removed, and false if d is
// already the root.
func (d DN) Parent() (DN, bool) {
	if len(d.rdns) == 0 {
		return DN{}, false
	}
	return DN{rdns: d.rdns[1:]}, true
}

// RDN returns the entry's own (leftmost) RDN.
func (d DN) RDN() RDN {
	if len(d.rdns) == 0 {
		return RDN{}
	}
	return d.rdns[0]
}
