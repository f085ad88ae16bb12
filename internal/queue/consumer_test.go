package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestConsumer(buf *bytes.Buffer) *Consumer {
	audit := logrus.New()
	audit.SetOutput(buf)
	audit.SetFormatter(&logrus.JSONFormatter{})
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return &Consumer{Queue: TruckEventsQueue, Log: quiet, Audit: audit}
}

func TestHandleWritesAuditEntry(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsumer(&buf)

	var hooked TruckEvent
	c.Hook = func(_ context.Context, ev TruckEvent) error {
		hooked = ev
		return nil
	}

	body, _ := json.Marshal(TruckEvent{
		Type: EventTruckRegistered, TruckID: 5, PlateNumber: 1234,
		ContractorName: "A", FactoryName: "F", GateName: "G", Status: "registered",
	})
	if err := c.Handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit line is not json: %v (%q)", err, buf.String())
	}
	if entry["event"] != EventTruckRegistered || entry["plate_number"] != float64(1234) || entry["factory"] != "F" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["previous_status"]; ok {
		t.Fatal("previous_status should be omitted for registrations")
	}
	if hooked.TruckID != 5 {
		t.Fatalf("hook not called with event: %+v", hooked)
	}
}

func TestHandleRejectsBadMessages(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConsumer(&buf)

	for name, body := range map[string]string{
		"not json":   "{",
		"no type":    `{"truck_id":1}`,
		"no truckID": `{"type":"truck.updated"}`,
	} {
		if err := c.Handle(context.Background(), []byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written, got %q", buf.String())
	}

	c.Hook = func(context.Context, TruckEvent) error { return errors.New("hook failed") }
	if err := c.Handle(context.Background(), []byte(`{"type":"truck.updated","truck_id":1}`)); err == nil {
		t.Fatal("hook error must propagate")
	}
}

func TestNewAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trucks.log")
	l, closer, err := NewAuditLogger(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.WithField("truck_id", 1).Info("truck event")
	_ = closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"truck_id":1`) {
		t.Fatalf("unexpected file content %q", data)
	}
}
