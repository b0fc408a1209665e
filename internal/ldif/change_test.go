package ldif

import (
	"errors"
	"testing"
)

func TestParseChangeRecordAdd(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: add",
		"objectClass: person",
		"cn: Alice",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Type != ChangeAdd {
		t.Errorf("Type = %v, want ChangeAdd", cr.Type)
	}
	if len(cr.AddAttributes) != 2 {
		t.Errorf("expected 2 attributes, got %d", len(cr.AddAttributes))
	}
}

func TestParseChangeRecordDelete(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: delete",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Type != ChangeDelete {
		t.Errorf("Type = %v, want ChangeDelete", cr.Type)
	}
}

func TestParseChangeRecordModify(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: modify",
		"replace: cn",
		"cn: Alice Cooper",
		"-",
		"add: mail",
		"mail: alice@example.com",
		"mail: alice@corp.example.com",
		"-",
		"delete: description",
		"-",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Type != ChangeModify {
		t.Fatalf("Type = %v, want ChangeModify", cr.Type)
	}
	if len(cr.Mods) != 3 {
		t.Fatalf("expected 3 mod specs, got %d", len(cr.Mods))
	}
	if cr.Mods[0].Op != ModOpReplace || cr.Mods[0].Desc.Type != "cn" {
		t.Errorf("mod[0] = %+v", cr.Mods[0])
	}
	if cr.Mods[1].Op != ModOpAdd || len(cr.Mods[1].Values) != 2 {
		t.Errorf("mod[1] = %+v", cr.Mods[1])
	}
	if cr.Mods[2].Op != ModOpDelete || len(cr.Mods[2].Values) != 0 {
		t.Errorf("mod[2] = %+v", cr.Mods[2])
	}
}

func TestParseChangeRecordModifyIncrement(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: modify",
		"increment: loginCount",
		"loginCount: 1",
		"-",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cr.Mods) != 1 {
		t.Fatalf("expected 1 mod spec, got %d", len(cr.Mods))
	}
	if cr.Mods[0].Op != ModOpIncrement || cr.Mods[0].Desc.Type != "loginCount" {
		t.Errorf("mod[0] = %+v", cr.Mods[0])
	}
	if len(cr.Mods[0].Values) != 1 || string(cr.Mods[0].Values[0]) != "1" {
		t.Errorf("expected increment amount 1, got %v", cr.Mods[0].Values)
	}
}

func TestParseChangeRecordModifyBadSpec(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: modify",
		"frobnicate: cn",
		"-",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrBadModifySpec) {
		t.Errorf("expected ErrBadModifySpec, got %v", err)
	}
}

func TestParseChangeRecordModDN(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,ou=users,dc=example,dc=com",
		"changetype: moddn",
		"newrdn: uid=alicia",
		"deleteoldrdn: 1",
		"newsuperior: ou=people,dc=example,dc=com",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Type != ChangeModDN {
		t.Fatalf("Type = %v, want ChangeModDN", cr.Type)
	}
	if cr.NewRDN != "uid=alicia" {
		t.Errorf("NewRDN = %q", cr.NewRDN)
	}
	if !cr.DeleteOldRDN {
		t.Error("expected DeleteOldRDN true")
	}
	if !cr.HasNewSuperior || cr.NewSuperior != "ou=people,dc=example,dc=com" {
		t.Errorf("NewSuperior = %q, HasNewSuperior = %v", cr.NewSuperior, cr.HasNewSuperior)
	}
}

func TestParseChangeRecordModRDNSynonym(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,ou=users,dc=example,dc=com",
		"changetype: modrdn",
		"newrdn: uid=alicia",
		"deleteoldrdn: 0",
	)
	cr, err := parseChangeRecord(rec, DefaultImportConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr.Type != ChangeModDN {
		t.Errorf("Type = %v, want ChangeModDN for modrdn synonym", cr.Type)
	}
	if cr.DeleteOldRDN {
		t.Error("expected DeleteOldRDN false")
	}
	if cr.HasNewSuperior {
		t.Error("expected HasNewSuperior false when newsuperior omitted")
	}
}

func TestParseChangeRecordModDNDeleteOldRDNCaseInsensitive(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"TRUE", true},
		{"true", true},
		{"Yes", true},
		{"FALSE", false},
		{"No", false},
	}
	for _, c := range cases {
		rec := recordFromLines(
			"dn: uid=alice,ou=users,dc=example,dc=com",
			"changetype: moddn",
			"newrdn: uid=alicia",
			"deleteoldrdn: "+c.value,
		)
		cr, err := parseChangeRecord(rec, DefaultImportConfig{})
		if err != nil {
			t.Fatalf("deleteoldrdn %q: unexpected error: %v", c.value, err)
		}
		if cr.DeleteOldRDN != c.want {
			t.Errorf("deleteoldrdn %q: DeleteOldRDN = %v, want %v", c.value, cr.DeleteOldRDN, c.want)
		}
	}
}

func TestParseChangeRecordModDNDeleteOldRDNUnrecognizedIsFatal(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,ou=users,dc=example,dc=com",
		"changetype: moddn",
		"newrdn: uid=alicia",
		"deleteoldrdn: maybe",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrBadModDNSpec) {
		t.Errorf("expected ErrBadModDNSpec for unrecognized deleteoldrdn value, got %v", err)
	}
}

func TestParseChangeRecordModDNMissingNewRDN(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,ou=users,dc=example,dc=com",
		"changetype: moddn",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrBadModDNSpec) {
		t.Errorf("expected ErrBadModDNSpec, got %v", err)
	}
}

func TestParseChangeRecordDeleteWithTrailingLinesIsFatal(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: delete",
		"cn: Alice",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrDeleteHasBody) {
		t.Errorf("expected ErrDeleteHasBody, got %v", err)
	}
}

func TestParseChangeRecordUnknownChangeType(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"changetype: frobnicate",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrUnknownChangeOp) {
		t.Errorf("expected ErrUnknownChangeOp, got %v", err)
	}
}

func TestParseChangeRecordMissingChangeType(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn: Alice",
	)
	_, err := parseChangeRecord(rec, DefaultImportConfig{})
	if !errors.Is(err, ErrUnknownChangeOp) {
		t.Errorf("expected ErrUnknownChangeOp, got %v", err)
	}
}

func TestChangeTypeString(t *testing.T) {
	cases := map[ChangeType]string{
		ChangeAdd:    "add",
		ChangeDelete: "delete",
		ChangeModify: "modify",
		ChangeModDN:  "moddn",
	}
	for ct, want := range cases {
		if got := ct.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", ct, got, want)
		}
	}
}
