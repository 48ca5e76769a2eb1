package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/replydesk"
	"github.com/xraph/replydesk/event"
	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/internal/entity"
)

// scriptedHook answers every command without a server and records what the
// client sent.
type scriptedHook struct {
	reply any
	err   error
	sent  [][]any
}

func (h *scriptedHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no server")
	}
}

func (h *scriptedHook) ProcessHook(goredis.ProcessHook) goredis.ProcessHook {
	return func(_ context.Context, cmd goredis.Cmder) error {
		h.sent = append(h.sent, cmd.Args())
		if h.err != nil {
			cmd.SetErr(h.err)
			return h.err
		}
		if c, ok := cmd.(*goredis.Cmd); ok {
			c.SetVal(h.reply)
		}
		return nil
	}
}

func (h *scriptedHook) ProcessPipelineHook(goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(_ context.Context, cmds []goredis.Cmder) error {
		for _, cmd := range cmds {
			h.sent = append(h.sent, cmd.Args())
		}
		return errors.New("unexpected pipeline")
	}
}

func scriptedStore(t *testing.T, h *scriptedHook) *Store {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(h)
	t.Cleanup(func() { _ = rdb.Close() })
	return &Store{Rails: NewRails(rdb)}
}

func testInbound() *event.InboundEvent {
	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &event.InboundEvent{
		ID:         id.NewEventID(),
		ExternalID: "msg-1",
		TenantID:   "tenant-a",
		Status:     event.StatusPending,
		ReceivedAt: ts,
		Entity:     entity.Entity{CreatedAt: ts, UpdatedAt: ts},
	}
}

func TestCreateEventIsOneScriptCall(t *testing.T) {
	tests := []struct {
		name    string
		reply   any
		err     error
		wantErr error
	}{
		{name: "created", reply: int64(1)},
		{name: "duplicate", reply: int64(0), wantErr: replydesk.ErrDuplicateEvent},
		{name: "write fails", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &scriptedHook{reply: tt.reply, err: tt.err}
			s := scriptedStore(t, h)
			evt := testInbound()

			err := s.CreateEvent(context.Background(), evt)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateEvent() error = %v, want %v", err, tt.wantErr)
				}
			case tt.err != nil:
				if err == nil || errors.Is(err, replydesk.ErrDuplicateEvent) {
					t.Fatalf("CreateEvent() error = %v, want the write error", err)
				}
			default:
				if err != nil {
					t.Fatalf("CreateEvent() error = %v", err)
				}
			}

			// The claim and the writes travel together: no SETNX or SET is
			// ever sent on its own, so a failed create leaves nothing that
			// would reject a redelivery.
			if len(h.sent) != 1 {
				t.Fatalf("sent %d commands, want 1: %v", len(h.sent), h.sent)
			}
			args := h.sent[0]
			if name, _ := args[0].(string); !strings.HasPrefix(strings.ToLower(name), "eval") {
				t.Fatalf("command = %v, want a script call", args[0])
			}
			unique := uniqueEventExternal + "tenant-a:msg-1"
			doc := entityKey(prefixEvent, evt.ID.String())
			if !containsArg(args, unique) || !containsArg(args, doc) {
				t.Errorf("script args %v missing %q or %q", args, unique, doc)
			}
		})
	}
}

func containsArg(args []any, want string) bool {
	for _, a := range args {
		if s, ok := a.(string); ok && s == want {
			return true
		}
	}
	return false
}
