// Package id defines the prefixed, sortable identifiers used for every
// replydesk record.
//
// An ID renders as "prefix_suffix" where the suffix is a UUIDv7 in base32,
// so IDs sort by creation time and the prefix names the record kind:
// evt (inbound event), sug (suggestion), cred (credential), conv
// (conversation), msg (sent message) and kb (knowledge entry).
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the record kind an ID belongs to.
type Prefix string

const (
	PrefixEvent        Prefix = "evt"
	PrefixSuggestion   Prefix = "sug"
	PrefixCredential   Prefix = "cred"
	PrefixConversation Prefix = "conv"
	PrefixMessage      Prefix = "msg"
	PrefixEntry        Prefix = "kb"
)

// ID is a record identifier. The zero value is Nil and renders as "".
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Nil is the absent ID.
var Nil ID

// New returns a fresh ID. An invalid prefix is a programming error and
// panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{tid: tid, ok: true}
}

func NewEventID() ID        { return New(PrefixEvent) }
func NewSuggestionID() ID   { return New(PrefixSuggestion) }
func NewCredentialID() ID   { return New(PrefixCredential) }
func NewConversationID() ID { return New(PrefixConversation) }
func NewMessageID() ID      { return New(PrefixMessage) }
func NewEntryID() ID        { return New(PrefixEntry) }

// Parse accepts an ID of any kind.
func Parse(s string) (ID, error) { return parse(s, "") }

func ParseEventID(s string) (ID, error)        { return parse(s, PrefixEvent) }
func ParseSuggestionID(s string) (ID, error)   { return parse(s, PrefixSuggestion) }
func ParseCredentialID(s string) (ID, error)   { return parse(s, PrefixCredential) }
func ParseConversationID(s string) (ID, error) { return parse(s, PrefixConversation) }
func ParseMessageID(s string) (ID, error)      { return parse(s, PrefixMessage) }
func ParseEntryID(s string) (ID, error)        { return parse(s, PrefixEntry) }

// parse decodes s and, when want is set, rejects any other prefix.
func parse(s string, want Prefix) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if want != "" && Prefix(tid.Prefix()) != want {
		return Nil, fmt.Errorf("id: parse %q: want prefix %q, got %q", s, want, tid.Prefix())
	}
	return ID{tid: tid, ok: true}, nil
}

func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the record kind, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

func (i ID) IsNil() bool { return !i.ok }

func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText decodes an ID of any kind. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value stores Nil as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.ok {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.tid.String(), nil
}

func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
