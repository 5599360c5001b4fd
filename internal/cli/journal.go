package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/armguard/internal/store"
	"github.com/roach88/armguard/internal/vehicle"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one entry kind
}

// JournalResult is one session's journal.
type JournalResult struct {
	Session  string        `json:"session"`
	Timeline []store.Entry `json:"timeline"`
	Stats    JournalStats  `json:"stats"`
}

// JournalStats counts a session's entries by kind.
type JournalStats struct {
	Total         int `json:"total"`
	Notifications int `json:"notifications"`
	Grants        int `json:"grants"`
	Denials       int `json:"denials"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show journaled notifications and arming decisions",
		Long: `Show what runs with --db journaled.

Without --session, lists every session with its time span and entry count.
With --session, prints that session's timeline in order.

Examples:
  armguard journal --db ./armguard.db
  armguard journal --db ./armguard.db --session bench-1
  armguard journal --db ./armguard.db --session bench-1 --kind deny --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Kind != "" && !validKind(opts.Kind) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid kind %q: must be notify, grant or deny", opts.Kind))
			}
			return withStore(opts.RootOptions, opts.Database, func(st *store.Store) error {
				if opts.Session == "" {
					return journalSessions(opts, st, cmd)
				}
				return journalTimeline(opts, st, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: ARMGUARD_DB)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to notify, grant or deny")

	return cmd
}

func validKind(kind string) bool {
	switch kind {
	case store.KindNotify, store.KindGrant, store.KindDeny:
		return true
	}
	return false
}

func journalSessions(opts *JournalOptions, st *store.Store, cmd *cobra.Command) error {
	sessions, err := st.Sessions(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	return opts.formatter(cmd).Success(sessions, func(w io.Writer) {
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No journaled sessions.")
			return
		}
		for _, s := range sessions {
			fmt.Fprintf(w, "%s  %dms..%dms  %d entries\n", s.Session, s.FirstAtMS, s.LastAtMS, s.Entries)
		}
	})
}

func journalTimeline(opts *JournalOptions, st *store.Store, cmd *cobra.Command) error {
	entries, err := st.Journal(commandContext(cmd), opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := JournalResult{Session: opts.Session, Timeline: []store.Entry{}}
	for _, e := range entries {
		switch e.Kind {
		case store.KindNotify:
			result.Stats.Notifications++
		case store.KindGrant:
			result.Stats.Grants++
		case store.KindDeny:
			result.Stats.Denials++
		}
		result.Stats.Total++
		if opts.Kind == "" || e.Kind == opts.Kind {
			result.Timeline = append(result.Timeline, e)
		}
	}

	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		if result.Stats.Total == 0 {
			fmt.Fprintf(w, "No entries for session: %s\n", result.Session)
			return
		}
		fmt.Fprintf(w, "Journal for session: %s\n\n", result.Session)
		fmt.Fprintln(w, "=== Timeline ===")
		for _, e := range result.Timeline {
			formatEntry(w, e, opts.Verbose)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Stats ===")
		fmt.Fprintf(w, "  Total:         %d\n", result.Stats.Total)
		fmt.Fprintf(w, "  Notifications: %d\n", result.Stats.Notifications)
		fmt.Fprintf(w, "  Grants:        %d\n", result.Stats.Grants)
		fmt.Fprintf(w, "  Denials:       %d\n", result.Stats.Denials)
	})
}

func formatEntry(w io.Writer, e store.Entry, verbose bool) {
	switch e.Kind {
	case store.KindNotify:
		fmt.Fprintf(w, "  [%d] %7dms notify %s: %s\n", e.Seq, e.AtMS, vehicle.Severity(e.Severity), e.Text)
	case store.KindDeny:
		fmt.Fprintf(w, "  [%d] %7dms deny: %s\n", e.Seq, e.AtMS, e.Text)
	default:
		fmt.Fprintf(w, "  [%d] %7dms %s\n", e.Seq, e.AtMS, e.Kind)
	}
	if verbose {
		fmt.Fprintf(w, "       severity: %d\n", e.Severity)
	}
}
