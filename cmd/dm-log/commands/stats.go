package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/omadm-protocol/omadm-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Anomalies         int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single DM session.
type SessionStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	MessagesOut   int
	MessagesIn    int
	Authenticated int
	LastState     string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.Before(sess.FirstSeen) {
		sess.FirstSeen = event.Timestamp
	}
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}

	switch event.Category {
	case log.CategoryMessage:
		s.EventsByDirection[event.Direction]++
		if event.Direction == log.DirectionOut {
			sess.MessagesOut++
			if event.Message != nil && event.Message.Authenticated {
				sess.Authenticated++
			}
		} else {
			sess.MessagesIn++
		}
	case log.CategoryState:
		if event.StateChange != nil {
			sess.LastState = event.StateChange.NewState
		}
	case log.CategoryAnomaly:
		s.Anomalies++
	case log.CategoryError:
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	if stats.TotalEvents == 0 {
		return
	}

	fmt.Fprintf(w, "Time range: %s - %s (%s)\n",
		stats.TimeRange.Start.UTC().Format(time.RFC3339),
		stats.TimeRange.End.UTC().Format(time.RFC3339),
		stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))

	fmt.Fprintln(w, "\nEvents by category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryAnomaly, log.CategoryError} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", c, n)
		}
	}

	fmt.Fprintln(w, "\nMessages by direction:")
	for _, d := range []log.Direction{log.DirectionOut, log.DirectionIn} {
		fmt.Fprintf(w, "  %s: %d\n", d, stats.EventsByDirection[d])
	}

	if stats.Anomalies > 0 {
		fmt.Fprintf(w, "\nAnomalies: %d\n", stats.Anomalies)
	}
	if stats.Errors > 0 {
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}

	ids := make([]string, 0, len(stats.Sessions))
	for id := range stats.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "\nSessions: %d\n", len(ids))
	for _, id := range ids {
		sess := stats.Sessions[id]
		fmt.Fprintf(w, "  %s: %d events, %d out / %d in (%d authenticated)",
			id, sess.Events, sess.MessagesOut, sess.MessagesIn, sess.Authenticated)
		if sess.LastState != "" {
			fmt.Fprintf(w, ", last state %s", sess.LastState)
		}
		fmt.Fprintln(w)
	}
}
