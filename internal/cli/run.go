package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/armguard/internal/harness"
	"github.com/roach88/armguard/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string
	Realtime bool
}

// RunResult is the run command's payload.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Session  string               `json:"session"`
	Pass     bool                 `json:"pass"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario against the simulated vehicle",
		Long: `Run one scenario and print its trace.

Without --db parameters live only in memory. With --db saved parameters
are loaded from and written to the database, and notifications, grants
and denials are journaled under the session token.

The scenario's inline profile wins over --profile.

Example:
  armguard run ./scenarios/fence.yaml
  armguard run --db ./armguard.db --session bench-1 ./scenarios/fence.yaml
  armguard run --realtime ./scenarios/follow.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (optional)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "journal session token (default: ARMGUARD_SESSION or scenario)")
	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "sleep between ticks instead of jumping through time")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := opts.Logger()
	formatter := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if err := applyProfile(opts.RootOptions, scenario); err != nil {
		return err
	}

	hopts := harness.Options{
		Session:  opts.Session,
		Realtime: opts.Realtime,
		Logger:   logger,
	}
	if hopts.Session == "" {
		hopts.Session = opts.Env.Session
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		hopts.Store = st
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	logger.Info("scenario starting", "scenario", scenario.Name, "realtime", opts.Realtime, "db", opts.Database)
	result, err := harness.RunWithOptions(ctx, scenario, hopts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "interrupted", err)
		}
		return WrapExitError(ExitCommandError, "scenario failed to run", err)
	}
	logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "events", len(result.Trace))

	out := RunResult{
		Scenario: scenario.Name,
		Session:  result.Session,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}
	text := func(w io.Writer) {
		fmt.Fprintf(w, "Scenario: %s (session %s)\n\n", out.Scenario, out.Session)
		fmt.Fprint(w, result.Render())
		fmt.Fprintln(w)
		if out.Pass {
			fmt.Fprintln(w, "✓ PASS")
			return
		}
		fmt.Fprintln(w, "✗ FAIL")
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !out.Pass {
		return formatter.Failure("E_SCENARIO_FAILED",
			fmt.Sprintf("%d assertion(s) failed", len(out.Errors)), out, text)
	}
	return formatter.Success(out, text)
}

// applyProfile hands the --profile file to a scenario with no inline profile.
func applyProfile(opts *RootOptions, scenario *harness.Scenario) error {
	if opts.Profile == "" || scenario.Profile != "" {
		return nil
	}
	data, err := os.ReadFile(opts.Profile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read profile", err)
	}
	scenario.Profile = string(data)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM, or when the command's
// own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(commandContext(cmd))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
