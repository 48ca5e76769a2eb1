package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/replydesk/id"
)

func TestNewCarriesPrefix(t *testing.T) {
	tests := []struct {
		gen    func() id.ID
		prefix id.Prefix
	}{
		{id.NewEventID, id.PrefixEvent},
		{id.NewSuggestionID, id.PrefixSuggestion},
		{id.NewCredentialID, id.PrefixCredential},
		{id.NewConversationID, id.PrefixConversation},
		{id.NewMessageID, id.PrefixMessage},
		{id.NewEntryID, id.PrefixEntry},
	}
	for _, tt := range tests {
		got := tt.gen()
		if got.Prefix() != tt.prefix {
			t.Errorf("prefix = %q, want %q", got.Prefix(), tt.prefix)
		}
		if !strings.HasPrefix(got.String(), string(tt.prefix)+"_") {
			t.Errorf("String() = %q", got.String())
		}
	}
}

func TestParseChecksPrefix(t *testing.T) {
	evt := id.NewEventID()

	if _, err := id.ParseEventID(evt.String()); err != nil {
		t.Fatalf("ParseEventID: %v", err)
	}
	if _, err := id.ParseSuggestionID(evt.String()); err == nil {
		t.Error("ParseSuggestionID accepted an event ID")
	}
	if got, err := id.Parse(evt.String()); err != nil || got != evt {
		t.Errorf("Parse = %v, %v", got, err)
	}
	for _, bad := range []string{"", "evt_", "not an id"} {
		if _, err := id.Parse(bad); err == nil {
			t.Errorf("Parse(%q) succeeded", bad)
		}
	}
}

func TestIDsSortByCreation(t *testing.T) {
	a := id.NewEventID()
	b := id.NewEventID()
	if a.String() >= b.String() {
		t.Errorf("%s not before %s", a, b)
	}
}

func TestNil(t *testing.T) {
	if !id.Nil.IsNil() || id.Nil.String() != "" || id.Nil.Prefix() != "" {
		t.Errorf("Nil = %q", id.Nil)
	}
	v, err := id.Nil.Value()
	if err != nil || v != nil {
		t.Errorf("Nil.Value() = %v, %v", v, err)
	}

	var scanned id.ID
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Errorf("Scan(nil) = %v, %v", scanned, err)
	}
}

func TestJSON(t *testing.T) {
	type doc struct {
		ID  id.ID `json:"id"`
		Opt id.ID `json:"opt"`
	}
	in := doc{ID: id.NewSuggestionID()}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"opt":""`) {
		t.Errorf("Nil should encode as empty string: %s", data)
	}

	var out doc
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != in.ID || !out.Opt.IsNil() {
		t.Errorf("round trip = %+v", out)
	}
}
