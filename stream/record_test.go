package stream

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	in := []Record{{
		Type:     ThetaType,
		Name:     "alice",
		ID:       "12345",
		Channels: []FlexID{"100", "200"},
		Messages: []MessageRec{{Channel: "100", Message: "900"}},
	}}
	b, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestRecordDecodesLegacyNumbers(t *testing.T) {
	legacy := `[{"type":"ThetaStream","name":"bob","id":"77","channels":[123456789012345678],
		"messages":[{"channel":123456789012345678,"message":987654321098765432}]}]`
	recs, err := Parse([]byte(legacy))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	if got := recs[0].Channels[0]; got != "123456789012345678" {
		t.Errorf("channel = %q, precision lost?", got)
	}
	if got := recs[0].Messages[0].Message; got != "987654321098765432" {
		t.Errorf("message = %q", got)
	}
}

func TestFlexIDRejectsGarbage(t *testing.T) {
	tests := []string{`1.5`, `-3`, `true`, `{}`}
	for _, in := range tests {
		var f FlexID
		if err := json.Unmarshal([]byte(in), &f); err == nil {
			t.Errorf("Unmarshal(%s) = %q, want error", in, f)
		}
	}
	var f FlexID
	if err := json.Unmarshal([]byte(`null`), &f); err != nil || f != "" {
		t.Errorf("Unmarshal(null) = %q, %v", f, err)
	}
}

func TestParseEmpty(t *testing.T) {
	recs, err := Parse(nil)
	if err != nil || recs != nil {
		t.Errorf("Parse(nil) = %v, %v", recs, err)
	}
	b, _ := Encode(nil)
	if string(b) != "[]" {
		t.Errorf("Encode(nil) = %s, want []", b)
	}
}

func TestRecordOmitsCredentials(t *testing.T) {
	s := NewTheta("alice", Deps{})
	b, err := json.Marshal(s.Record())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	for _, k := range []string{"token", "bearer", "client_id"} {
		if _, ok := m[k]; ok {
			t.Errorf("record contains %q", k)
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode(Record{Type: "TwitchStream", Name: "x"}, Deps{}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	got := DecodeAll([]Record{{Type: "Nope"}, {Type: ThetaType, Name: "alice"}}, Deps{})
	if len(got) != 1 || got[0].Stream.Name() != "alice" || got[0].Record.Name != "alice" {
		t.Errorf("DecodeAll() = %v", got)
	}
}
