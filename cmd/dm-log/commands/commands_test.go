package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omadm-protocol/omadm-go/pkg/log"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return string(data)
}

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.dmlog")
	fl, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func TestViewFormatsMessageEvent(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{
			Timestamp: ts, SessionID: "4A3B2C1D", Direction: log.DirectionOut,
			Category: log.CategoryMessage, ServerURL: "https://dm.test.example/syncml",
			Message: &log.MessageEvent{MsgID: 1, Commands: "Alert(1201)", Final: true, Authenticated: true},
		},
	})

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"[session:4A3B2C1D]",
		"OUT",
		"MESSAGE",
		"MsgID: 1",
		"Commands: Alert(1201)",
		"Final: true",
		"Authenticated: true",
		"Server: https://dm.test.example/syncml",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestViewFiltersByCategory(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, SessionID: "S1", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{NewState: "registered"}},
		{Timestamp: ts, SessionID: "S1", Category: log.CategoryAnomaly,
			Anomaly: &log.AnomalyEvent{Context: "challenge", Detail: "unrecognized scheme"}},
	})

	filter, err := BuildFilter("", "anomaly")
	if err != nil {
		t.Fatalf("BuildFilter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Context: challenge") {
		t.Errorf("expected anomaly event in output, got:\n%s", output)
	}
	if strings.Contains(output, "registered") {
		t.Errorf("state event should be filtered out, got:\n%s", output)
	}
}

func TestBuildFilterRejectsUnknownCategory(t *testing.T) {
	if _, err := BuildFilter("", "bogus"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestExportWritesJSONL(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, SessionID: "S1", Category: log.CategoryMessage,
			Message: &log.MessageEvent{MsgID: 1}},
		{Timestamp: ts, SessionID: "S1", Category: log.CategoryError,
			Error: &log.ErrorEventData{Context: "send", Message: "boom"}},
	})

	out := filepath.Join(t.TempDir(), "out.jsonl")
	if err := RunExport(path, out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "boom") {
		t.Errorf("expected error message in second line, got: %s", lines[1])
	}
}

func TestStatsSummarizesSessions(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, SessionID: "S1", Direction: log.DirectionOut,
			Category: log.CategoryMessage, Message: &log.MessageEvent{MsgID: 1, Authenticated: true}},
		{Timestamp: ts.Add(time.Second), SessionID: "S1", Direction: log.DirectionIn,
			Category: log.CategoryMessage, Message: &log.MessageEvent{MsgID: 1}},
		{Timestamp: ts.Add(2 * time.Second), SessionID: "S1", Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{OldState: "active", NewState: "aborted"}},
		{Timestamp: ts, SessionID: "S2", Category: log.CategoryAnomaly,
			Anomaly: &log.AnomalyEvent{Context: "descriptor"}},
	})

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Total events: 4",
		"MESSAGE: 2",
		"STATE: 1",
		"ANOMALY: 1",
		"Sessions: 2",
		"S1: 3 events, 1 out / 1 in (1 authenticated), last state aborted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total events: 0") {
		t.Errorf("expected zero total, got:\n%s", buf.String())
	}
}
