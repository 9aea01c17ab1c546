package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSharedBufferPublishAndWait(t *testing.T) {
	b := NewSharedBuffer(1024)
	go b.Publish([]byte(`{"ok":true}`))

	payload, err := b.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("payload = %s, want {\"ok\":true}", payload)
	}
}

func TestSharedBufferOverflowReplacesPayload(t *testing.T) {
	b := NewSharedBuffer(4)
	go b.Publish([]byte(`{"ok":true,"formatted":"way too big for four bytes"}`))

	payload, err := b.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	var decoded struct {
		OK        bool   `json:"ok"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("overflow payload is not valid JSON: %v (%s)", err, payload)
	}
	if decoded.OK {
		t.Error("overflow payload should report ok=false")
	}
	if decoded.ErrorCode == "" {
		t.Error("overflow payload should carry an errorCode")
	}
}

func TestSharedBufferFailPropagatesError(t *testing.T) {
	b := NewSharedBuffer(1024)
	want := errors.New("boom")
	go b.Fail(want)

	_, err := b.Wait(context.Background())
	if !errors.Is(err, want) {
		t.Errorf("Wait() error = %v, want %v", err, want)
	}
}

func TestSharedBufferWaitRespectsContext(t *testing.T) {
	b := NewSharedBuffer(1024)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestOverflowPayloadIsWellFormed(t *testing.T) {
	if !strings.Contains(string(overflowPayload()), `"ok":false`) {
		t.Error("overflowPayload should encode ok=false")
	}
}
