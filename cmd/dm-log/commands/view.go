// Package commands implements the dm-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/omadm-protocol/omadm-go/pkg/log"
)

// BuildFilter translates the view command flags into a log filter.
func BuildFilter(sessionID, category string) (log.Filter, error) {
	filter := log.Filter{SessionID: sessionID}
	if category != "" {
		c, err := parseCategory(category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "anomaly":
		return log.CategoryAnomaly, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category: %s (supported: message, state, anomaly, error)", s)
	}
}

// RunView reads the log file and writes matching events to w in
// human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] DIRECTION CATEGORY
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	dir := "   "
	if event.Category == log.CategoryMessage {
		dir = fmt.Sprintf("%-3s", event.Direction.String())
	}

	fmt.Fprintf(w, "%s [session:%s] %s %s\n", ts, event.SessionID, dir, event.Category)

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Anomaly != nil:
		formatAnomalyDetails(w, event.Anomaly)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func formatMessageDetails(w io.Writer, event log.Event) {
	msg := event.Message
	fmt.Fprintf(w, "  MsgID: %d\n", msg.MsgID)
	if msg.Commands != "" {
		fmt.Fprintf(w, "  Commands: %s\n", msg.Commands)
	}
	if msg.Final {
		fmt.Fprintf(w, "  Final: true\n")
	}
	if msg.Authenticated {
		fmt.Fprintf(w, "  Authenticated: true\n")
	}
	if event.ServerURL != "" {
		fmt.Fprintf(w, "  Server: %s\n", event.ServerURL)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  Transition: %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  State: %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatAnomalyDetails(w io.Writer, a *log.AnomalyEvent) {
	fmt.Fprintf(w, "  Context: %s\n", a.Context)
	if a.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", a.Detail)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Context: %s\n", e.Context)
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
}
