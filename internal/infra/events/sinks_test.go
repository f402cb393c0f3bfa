package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"custodyledger/pkg/domain"
)

var actor = common.HexToAddress("0x00000000000000000000000000000000000000d4")

type failingSink struct{}

func (failingSink) Publish(context.Context, domain.Event) error { return errors.New("sink down") }

func TestRecorderAndJSONLines(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder()
	sink := Fanout{rec, NewJSONLines(&buf), nil}
	ctx := context.Background()
	if err := sink.Publish(ctx, domain.Event{Kind: domain.EventApproved, ItemCode: 100, Actor: actor}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := sink.Publish(ctx, domain.Event{Kind: domain.EventRegistered, Identity: actor, Actor: actor}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	kinds := rec.Kinds()
	if len(kinds) != 2 || kinds[0] != domain.EventApproved || kinds[1] != domain.EventRegistered {
		t.Fatalf("unexpected kinds %v", kinds)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %d", len(lines))
	}
	var decoded domain.Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ItemCode != 100 || decoded.Actor != actor {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	rec := NewRecorder()
	err := Fanout{failingSink{}, rec}.Publish(context.Background(), domain.Event{Kind: domain.EventHold})
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Fatalf("expected remaining sinks to receive the event")
	}
}

func TestLogSinkFormats(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	_ = sink.Publish(context.Background(), domain.Event{Kind: domain.EventUnregistered, Identity: actor, Actor: actor})
	_ = sink.Publish(context.Background(), domain.Event{Kind: domain.EventMftrDispatched, ItemCode: 100, Price: 500})
	out := buf.String()
	if !strings.Contains(out, "kind=Unregistered identity="+actor.Hex()) {
		t.Fatalf("missing registry line: %q", out)
	}
	if !strings.Contains(out, "kind=MftrDispatched item=100") || !strings.Contains(out, "price=500") {
		t.Fatalf("missing custody line: %q", out)
	}
}
