package ldif

import "strings"

// ChangeType identifies which of the four LDIF change operations a
// ChangeRecord carries.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeDelete
	ChangeModify
	ChangeModDN
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "add"
	case ChangeDelete:
		return "delete"
	case ChangeModify:
		return "modify"
	case ChangeModDN:
		return "moddn"
	default:
		return "unknown"
	}
}

// ModOp identifies one of the three modify sub-operations.
type ModOp int

const (
	ModOpAdd ModOp = iota
	ModOpDelete
	ModOpReplace
	ModOpIncrement
)

// ModSpec is one "add:"/"delete:"/"replace:" block within a modify
// change record.
type ModSpec struct {
	Op     ModOp
	Desc   AttrDescription
	Values [][]byte
}

// ChangeRecord is a parsed LDIF change record: exactly one of its
// operation-specific fields is meaningful, selected by Type.
type ChangeRecord struct {
	DN   DN
	Type ChangeType
	Line int

	// ChangeAdd
	AddAttributes []Attribute

	// ChangeModify
	Mods []ModSpec

	// ChangeModDN
	NewRDN         string
	DeleteOldRDN   bool
	NewSuperior    string
	HasNewSuperior bool
}

// parseChangeRecord implements the Change-Record Parser: it expects a
// "dn:" header line followed by a "changetype:" line, and dispatches to
// the operation-specific grammar from there.
func parseChangeRecord(rec *record, cfg ImportConfig) (*ChangeRecord, error) {
	if len(rec.lines) < 2 {
		return nil, newParseError(rec.startLine, true, ErrMissingDN)
	}

	head := rec.lines[0]
	field, err := decodeField(head.text, cfg)
	if err != nil {
		return nil, newParseError(head.line, true, err)
	}
	if !strings.EqualFold(field.desc, "dn") {
		return nil, newParseError(head.line, true, ErrMissingDN)
	}
	dn, err := ParseDN(string(field.value))
	if err != nil {
		return nil, newParseError(head.line, true, err)
	}

	ctLine := rec.lines[1]
	ctField, err := decodeField(ctLine.text, cfg)
	if err != nil {
		return nil, newParseError(ctLine.line, true, err)
	}
	if !strings.EqualFold(ctField.desc, "changetype") {
		return nil, newParseError(ctLine.line, true, ErrUnknownChangeOp)
	}

	cr := &ChangeRecord{DN: dn, Line: head.line}
	rest := rec.lines[2:]

	switch strings.ToLower(strings.TrimSpace(string(ctField.value))) {
	case "add":
		cr.Type = ChangeAdd
		return cr, parseAddBody(cr, rest, cfg)
	case "delete":
		cr.Type = ChangeDelete
		if len(rest) > 0 {
			return nil, newParseError(rest[0].line, true, ErrDeleteHasBody)
		}
		return cr, nil
	case "modify":
		cr.Type = ChangeModify
		return cr, parseModifyBody(cr, rest, cfg)
	case "modrdn", "moddn":
		cr.Type = ChangeModDN
		return cr, parseModDNBody(cr, rest, cfg)
	default:
		return nil, newParseError(ctLine.line, true, ErrUnknownChangeOp)
	}
}

func parseAddBody(cr *ChangeRecord, lines []logicalLine, cfg ImportConfig) error {
	builder := NewAttributeBuilder()
	for _, ll := range lines {
		f, err := decodeField(ll.text, cfg)
		if err != nil {
			return newParseError(ll.line, true, err)
		}
		builder.AddValue(ParseAttrDescription(f.desc), f.value, false)
	}
	cr.AddAttributes = builder.Build()
	return nil
}

// parseModifyBody parses the "add:"/"delete:"/"replace:" blocks of a
// modify change record, each terminated by a line containing only "-".
func parseModifyBody(cr *ChangeRecord, lines []logicalLine, cfg ImportConfig) error {
	i := 0
	for i < len(lines) {
		opLine := lines[i]
		f, err := decodeField(opLine.text, cfg)
		if err != nil {
			return newParseError(opLine.line, true, err)
		}
		var op ModOp
		switch strings.ToLower(f.desc) {
		case "add":
			op = ModOpAdd
		case "delete":
			op = ModOpDelete
		case "replace":
			op = ModOpReplace
		case "increment":
			op = ModOpIncrement
		default:
			return newParseError(opLine.line, true, ErrBadModifySpec)
		}
		desc := ParseAttrDescription(strings.TrimSpace(string(f.value)))
		i++

		var values [][]byte
		for i < len(lines) {
			if strings.TrimSpace(lines[i].text) == "-" {
				i++
				break
			}
			vf, err := decodeField(lines[i].text, cfg)
			if err != nil {
				return newParseError(lines[i].line, true, err)
			}
			values = append(values, vf.value)
			i++
		}

		cr.Mods = append(cr.Mods, ModSpec{Op: op, Desc: desc, Values: values})
	}
	return nil
}

func parseModDNBody(cr *ChangeRecord, lines []logicalLine, cfg ImportConfig) error {
	if len(lines) == 0 {
		return newParseError(cr.Line, true, ErrBadModDNSpec)
	}
	nrField, err := decodeField(lines[0].text, cfg)
	if err != nil {
		return newParseError(lines[0].line, true, err)
	}
	if !strings.EqualFold(nrField.desc, "newrdn") {
		return newParseError(lines[0].line, true, ErrBadModDNSpec)
	}
	cr.NewRDN = string(nrField.value)

	idx := 1
	if idx < len(lines) {
		delField, err := decodeField(lines[idx].text, cfg)
		if err != nil {
			return newParseError(lines[idx].line, true, err)
		}
		if strings.EqualFold(delField.desc, "deleteoldrdn") {
			b, err := parseLDIFBoolean(string(delField.value))
			if err != nil {
				return newParseError(lines[idx].line, true, ErrBadModDNSpec)
			}
			cr.DeleteOldRDN = b
			idx++
		}
	}
	if idx < len(lines) {
		supField, err := decodeField(lines[idx].text, cfg)
		if err != nil {
			return newParseError(lines[idx].line, true, err)
		}
		if strings.EqualFold(supField.desc, "newsuperior") {
			cr.NewSuperior = string(supField.value)
			cr.HasNewSuperior = true
			idx++
		}
	}
	return nil
}

// parseLDIFBoolean parses "deleteoldrdn"'s value, accepting 0/1/true/false/
// yes/no case-insensitively. Anything else is an error.
func parseLDIFBoolean(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, ErrBadModDNSpec
	}
}
