package store

import (
	"context"
	"fmt"
)

// Entry kinds.
const (
	KindNotify = "notify"
	KindGrant  = "grant"
	KindDeny   = "deny"
)

// Entry is one journal row.
type Entry struct {
	Seq      int64  `json:"seq"`
	Session  string `json:"session"`
	AtMS     int64  `json:"at_ms"` // milliseconds since session start
	Kind     string `json:"kind"`
	Severity int    `json:"severity"`
	Text     string `json:"text,omitempty"`
}

// AppendJournal appends an entry and returns its assigned seq. Seq on the
// argument is ignored.
func (s *Store) AppendJournal(ctx context.Context, e Entry) (int64, error) {
	if e.Session == "" {
		return 0, fmt.Errorf("append journal: empty session")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (session, at_ms, kind, severity, text)
		VALUES (?, ?, ?, ?, ?)
	`, e.Session, e.AtMS, e.Kind, e.Severity, e.Text)
	if err != nil {
		return 0, fmt.Errorf("append journal: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append journal: %w", err)
	}
	return seq, nil
}

// Journal returns a session's entries in append order.
func (s *Store) Journal(ctx context.Context, session string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session, at_ms, kind, severity, text
		FROM journal
		WHERE session = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Session, &e.AtMS, &e.Kind, &e.Severity, &e.Text); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// SessionSummary describes one session's journal.
type SessionSummary struct {
	Session   string `json:"session"`
	FirstAtMS int64  `json:"first_at_ms"`
	LastAtMS  int64  `json:"last_at_ms"`
	Entries   int    `json:"entries"`
}

// Sessions summarizes every journal session in order of first appearance.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, MIN(at_ms), MAX(at_ms), COUNT(*)
		FROM journal
		GROUP BY session
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Session, &sum.FirstAtMS, &sum.LastAtMS, &sum.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
