package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"buildgen.ai/internal/protocol"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// roundTrip marshals v and decodes it back into a generic value so the
// schemas see exactly what the bridge sends.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateMessages(t *testing.T) {
	level := 2
	seed := int64(77)
	cases := []struct {
		schema string
		msg    any
	}{
		{"hello.schema.json", protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "editor"}},
		{"welcome.schema.json", protocol.WelcomeMsg{
			Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "s1",
			Templates: []string{"town"}, CurrentTemplate: "town",
		}},
		{"cmd.schema.json", protocol.CmdMsg{
			Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, CmdID: "c1", Cmd: protocol.CmdRecreateFloor,
			Args: protocol.CmdArgs{FloorTemplate: "storey", Level: &level, Seed: &seed},
		}},
		{"result.schema.json", protocol.ResultMsg{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version, CmdID: "c1", OK: true,
			Building: json.RawMessage(`{"object":"b","floors":{},"roof":null,"template_id":"town"}`), SelectedLevel: &level,
		}},
		{"result.schema.json", protocol.ResultMsg{
			Type: protocol.TypeResult, ProtocolVersion: protocol.Version, CmdID: "c2", Code: protocol.ErrLookup, Message: "no floor at level 9",
		}},
	}
	for _, tc := range cases {
		if err := compile(t, tc.schema).Validate(roundTrip(t, tc.msg)); err != nil {
			t.Fatalf("%s: %v", tc.schema, err)
		}
	}
}

func TestSchemas_RejectUnknownCommand(t *testing.T) {
	s := compile(t, "cmd.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"CMD","protocol_version":"1.0","cmd_id":"c1","cmd":"fly"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected unknown command rejected")
	}
	_ = json.Unmarshal([]byte(`{"type":"CMD","protocol_version":"1.0","cmd_id":"c1","cmd":"refresh","args":{"colour":"red"}}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected unknown argument rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"CMD","protocol_version":"1.0","cmd":"refresh"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if m.Type != protocol.TypeCmd || m.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v", m)
	}
	if _, err := protocol.DecodeBase([]byte(`{`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
}
