package ldif

import (
	"errors"
	"strings"
	"testing"

	"github.com/oba-directory/oba/internal/logging"
)

type fakeSchema struct {
	attrs      map[string]AttributeTypeInfo
	classes    map[string]ObjectClassInfo
	validate   func(dn string, attrs map[string][][]byte) error
	acceptable func(typeName string, value []byte) (bool, string)
}

func (s *fakeSchema) AttributeType(name string) (AttributeTypeInfo, bool) {
	at, ok := s.attrs[strings.ToLower(name)]
	return at, ok
}

func (s *fakeSchema) ObjectClass(name string) (ObjectClassInfo, bool) {
	oc, ok := s.classes[strings.ToLower(name)]
	return oc, ok
}

func (s *fakeSchema) ValidateEntry(dn string, attrs map[string][][]byte) error {
	if s.validate != nil {
		return s.validate(dn, attrs)
	}
	return nil
}

func (s *fakeSchema) ValueIsAcceptable(typeName string, value []byte) (bool, string) {
	if s.acceptable != nil {
		return s.acceptable(typeName, value)
	}
	return true, ""
}

func recordFromLines(lines ...string) *record {
	rec := &record{startLine: 1}
	for i, l := range lines {
		rec.lines = append(rec.lines, logicalLine{text: l, line: i + 1})
	}
	return rec
}

func TestAssembleEntryBasic(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"objectClass: person",
		"cn: Alice",
	)
	entry, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.DN.String() != "uid=alice,dc=example,dc=com" {
		t.Errorf("DN = %q", entry.DN.String())
	}
	if !entry.HasAttribute("cn") {
		t.Error("expected cn attribute")
	}
}

func TestAssembleEntryMissingDN(t *testing.T) {
	rec := recordFromLines("cn: Alice")
	_, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if !errors.Is(err, ErrMissingDN) {
		t.Errorf("expected ErrMissingDN, got %v", err)
	}
}

func TestAssembleEntryEmptyDNValue(t *testing.T) {
	rec := recordFromLines("dn:", "cn: Alice")
	_, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if !errors.Is(err, ErrMissingDN) {
		t.Errorf("expected ErrMissingDN for empty dn value, got %v", err)
	}
}

func TestAssembleEntryAttributeFiltering(t *testing.T) {
	rec := func() *record {
		return recordFromLines(
			"dn: uid=alice,dc=example,dc=com",
			"cn: Alice",
			"sn: Smith",
			"mail: alice@example.com",
		)
	}

	includeCfg := includeOnlyConfig{names: []string{"cn"}}
	entry, err := assembleEntry(rec(), includeCfg, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.HasAttribute("sn") || entry.HasAttribute("mail") {
		t.Error("expected only included attributes to survive")
	}
	if !entry.HasAttribute("cn") {
		t.Error("expected cn to survive inclusion filter")
	}

	excludeCfg := excludeConfig{names: []string{"mail"}}
	entry, err = assembleEntry(rec(), excludeCfg, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.HasAttribute("mail") {
		t.Error("expected excluded attribute to be dropped")
	}
	if !entry.HasAttribute("sn") {
		t.Error("expected non-excluded attribute to survive")
	}
}

type includeOnlyConfig struct {
	DefaultImportConfig
	names []string
}

func (c includeOnlyConfig) IncludeAttributes() []string { return c.names }

type excludeConfig struct {
	DefaultImportConfig
	names []string
}

func (c excludeConfig) ExcludeAttributes() []string { return c.names }

func TestAssembleEntryGeneratesUUID(t *testing.T) {
	cfg := uuidConfig{id: "fixed-uuid-value"}
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	entry, err := assembleEntry(rec, cfg, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := entry.Values("entryUUID")
	if len(got) != 1 || string(got[0]) != "fixed-uuid-value" {
		t.Errorf("expected generated entryUUID, got %v", got)
	}
}

func TestAssembleEntryDoesNotOverwriteExistingUUID(t *testing.T) {
	cfg := uuidConfig{id: "fixed-uuid-value"}
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn: Alice",
		"entryUUID: already-set",
	)
	entry, err := assembleEntry(rec, cfg, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := entry.Values("entryUUID")
	if len(got) != 1 || string(got[0]) != "already-set" {
		t.Errorf("expected existing entryUUID preserved, got %v", got)
	}
}

type uuidConfig struct {
	DefaultImportConfig
	id string
}

func (c uuidConfig) GenerateEntryUUID() string { return c.id }

func TestAssembleEntryImplicitSuperiorObjectClass(t *testing.T) {
	sch := &fakeSchema{
		classes: map[string]ObjectClassInfo{
			"inetorgperson":        {Name: "inetOrgPerson", Superior: "organizationalPerson", HasSuperior: true},
			"organizationalperson": {Name: "organizationalPerson", Superior: "person", HasSuperior: true},
			"person":               {Name: "person", HasSuperior: false},
		},
	}
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"objectClass: inetOrgPerson",
		"cn: Alice",
		"sn: Smith",
	)
	cfg := validatingConfig{}
	entry, err := assembleEntry(rec, cfg, sch, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ocs := entry.Values("objectClass")
	found := map[string]bool{}
	for _, v := range ocs {
		found[string(v)] = true
	}
	for _, want := range []string{"inetOrgPerson", "organizationalPerson", "person"} {
		if !found[want] {
			t.Errorf("expected implicit superior %q in objectClass values, got %v", want, ocs)
		}
	}
}

type validatingConfig struct{ DefaultImportConfig }

func (validatingConfig) ValidateSchema() bool { return false }

func TestAssembleEntrySchemaValidationFailure(t *testing.T) {
	sch := &fakeSchema{
		validate: func(dn string, attrs map[string][][]byte) error {
			return errors.New("missing required attribute")
		},
	}
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	_, err := assembleEntry(rec, DefaultImportConfig{}, sch, nil, logging.NewNop())
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestAssembleEntryValidateWithoutSchemaAttached(t *testing.T) {
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	_, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if !errors.Is(err, ErrNoSchemaAttached) {
		t.Errorf("expected ErrNoSchemaAttached, got %v", err)
	}
}

// rejectingPlugin implements ImportPlugin, vetoing every entry handed to
// PreImport and recording whether BeginSession/EndSession were called.
type rejectingPlugin struct {
	reason             string
	began, ended       bool
	beginErr           error
}

func (p *rejectingPlugin) BeginSession() error {
	p.began = true
	return p.beginErr
}

func (p *rejectingPlugin) EndSession() { p.ended = true }

func (p *rejectingPlugin) PreImport(entry *Entry) (bool, string) {
	return true, p.reason
}

func TestAssembleEntryPluginRejects(t *testing.T) {
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	plugin := &rejectingPlugin{reason: "vetoed"}
	_, err := assembleEntry(rec, validatingConfig{}, nil, plugin, logging.NewNop())
	if err == nil || !strings.Contains(err.Error(), "vetoed") {
		t.Errorf("expected plugin veto error, got %v", err)
	}
	if !errors.Is(err, ErrPluginRejected) {
		t.Errorf("expected ErrPluginRejected, got %v", err)
	}
}

func TestAssembleEntryBinaryOptionForced(t *testing.T) {
	sch := &fakeSchema{
		attrs: map[string]AttributeTypeInfo{
			"usercertificate": {Name: "userCertificate", BEREncodingRequired: true},
		},
	}
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"userCertificate:: AAEC",
	)
	entry, err := assembleEntry(rec, validatingConfig{}, sch, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var found bool
	for _, a := range entry.Attributes {
		if strings.EqualFold(a.Desc.Type, "userCertificate") {
			found = a.Desc.Binary()
		}
	}
	if !found {
		t.Error("expected userCertificate attribute to carry the binary option")
	}
}

func TestAssembleEntryBinaryOptionRejectedWhenNotRequired(t *testing.T) {
	sch := &fakeSchema{
		attrs: map[string]AttributeTypeInfo{
			"cn": {Name: "cn", BEREncodingRequired: false},
		},
	}
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn;binary:: QWxpY2U=",
	)
	_, err := assembleEntry(rec, validatingConfig{}, sch, nil, logging.NewNop())
	if !errors.Is(err, ErrBinaryOptionDenied) {
		t.Errorf("expected ErrBinaryOptionDenied, got %v", err)
	}
}

func TestAssembleEntryDuplicateValueFatalUnderValidation(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn: Alice",
		"cn: Alice",
	)
	_, err := assembleEntry(rec, validatingConfig{}, nil, nil, logging.NewNop())
	if !errors.Is(err, ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestAssembleEntryDuplicateValueIgnoredWithoutValidation(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn: Alice",
		"cn: Alice",
	)
	entry, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.HasAttribute("cn") {
		t.Error("expected cn attribute to survive")
	}
}

func TestAssembleEntrySyntaxPolicyReject(t *testing.T) {
	sch := &fakeSchema{
		acceptable: func(typeName string, value []byte) (bool, string) {
			return false, "not a number"
		},
	}
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	cfg := syntaxPolicyConfig{policy: SyntaxPolicyReject}
	_, err := assembleEntry(rec, cfg, sch, nil, logging.NewNop())
	if !errors.Is(err, ErrSyntaxViolation) {
		t.Errorf("expected ErrSyntaxViolation, got %v", err)
	}
}

func TestAssembleEntrySyntaxPolicyWarnTolerates(t *testing.T) {
	sch := &fakeSchema{
		acceptable: func(typeName string, value []byte) (bool, string) {
			return false, "not a number"
		},
	}
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	cfg := syntaxPolicyConfig{policy: SyntaxPolicyWarn}
	entry, err := assembleEntry(rec, cfg, sch, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error under warn policy: %v", err)
	}
	if !entry.HasAttribute("cn") {
		t.Error("expected cn attribute to survive under warn policy")
	}
}

type syntaxPolicyConfig struct {
	DefaultImportConfig
	policy SyntaxPolicy
}

func (c syntaxPolicyConfig) ValidateSchema() bool   { return false }
func (c syntaxPolicyConfig) SyntaxPolicy() SyntaxPolicy { return c.policy }

func TestAssembleEntryRDNCompletionAddsMissingAttribute(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"cn: Alice",
	)
	entry, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := entry.Values("uid")
	if len(got) != 1 || string(got[0]) != "alice" {
		t.Errorf("expected RDN completion to add uid: alice, got %v", got)
	}
}

func TestAssembleEntryRDNCompletionSkipsWhenAlreadyPresent(t *testing.T) {
	rec := recordFromLines(
		"dn: uid=alice,dc=example,dc=com",
		"uid: alice",
		"cn: Alice",
	)
	entry, err := assembleEntry(rec, DefaultImportConfig{}, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := entry.Values("uid")
	if len(got) != 1 {
		t.Errorf("expected uid not duplicated by RDN completion, got %v", got)
	}
}

func TestAssembleEntryExcludeEntryFilter(t *testing.T) {
	rec := recordFromLines("dn: uid=alice,dc=example,dc=com", "cn: Alice")
	cfg := excludeEntryConfig{reason: "test-objects excluded"}
	_, err := assembleEntry(rec, cfg, nil, nil, logging.NewNop())
	var filtered *entryFiltered
	if !errors.As(err, &filtered) {
		t.Fatalf("expected *entryFiltered, got %T (%v)", err, err)
	}
	if filtered.reason != "test-objects excluded" {
		t.Errorf("reason = %q", filtered.reason)
	}
}

type excludeEntryConfig struct {
	DefaultImportConfig
	reason string
}

func (c excludeEntryConfig) ExcludeEntry(entry *Entry) (bool, string) {
	return true, c.reason
}

func TestAssembleEntryExcludeDNAfterBase64Decode(t *testing.T) {
	// base64 of "uid=alice,dc=example,dc=com"
	rec := recordFromLines(
		"dn:: dWlkPWFsaWNlLGRjPWV4YW1wbGUsZGM9Y29t",
		"cn: Alice",
	)
	cfg := excludeDecodedDNConfig{dn: "uid=alice,dc=example,dc=com"}
	_, err := assembleEntry(rec, cfg, nil, nil, logging.NewNop())
	var filtered *entryFiltered
	if !errors.As(err, &filtered) {
		t.Fatalf("expected *entryFiltered for base64-encoded excluded DN, got %T (%v)", err, err)
	}
}

type excludeDecodedDNConfig struct {
	DefaultImportConfig
	dn string
}

func (c excludeDecodedDNConfig) ExcludeDN(dn string) bool { return dn == c.dn }
