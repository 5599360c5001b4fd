package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/armguard/internal/store"
)

// ParamsOptions holds flags shared by the params subcommands.
type ParamsOptions struct {
	*RootOptions
	Database string
}

// NewParamsCommand creates the params command and its subcommands.
func NewParamsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParamsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect and edit saved parameters",
		Long: `Inspect and edit the parameters saved in the database.

Saved values are the durable layer a scenario run starts from. Names are
matched case-insensitively and stored upper case.

Examples:
  armguard params list --db ./armguard.db
  armguard params get FOLL_OFS_Z --db ./armguard.db
  armguard params set fence_enable 1 --db ./armguard.db
  armguard params delete FENCE_ENABLE --db ./armguard.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: ARMGUARD_DB)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List saved parameters",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, opts.Database, func(st *store.Store) error {
				return paramsList(opts, st, cmd)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "get <name>",
		Short:         "Print one saved parameter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, opts.Database, func(st *store.Store) error {
				return paramsGet(opts, st, args[0], cmd)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set <name> <value>",
		Short:         "Save a parameter",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid value %q: must be a finite number", args[1]))
			}
			return withStore(opts.RootOptions, opts.Database, func(st *store.Store) error {
				return paramsSet(opts, st, args[0], value, cmd)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a saved parameter",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, opts.Database, func(st *store.Store) error {
				return paramsDelete(opts, st, args[0], cmd)
			})
		},
	})

	return cmd
}

// withStore opens the database for the duration of fn.
func withStore(opts *RootOptions, flag string, fn func(st *store.Store) error) error {
	path, err := opts.dbPath(flag)
	if err != nil {
		return err
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			opts.Logger().Error("error closing database", "error", closeErr)
		}
	}()
	return fn(st)
}

func paramsList(opts *ParamsOptions, st *store.Store, cmd *cobra.Command) error {
	params, err := st.Params(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list params", err)
	}
	if params == nil {
		params = []store.Param{}
	}
	return opts.formatter(cmd).Success(params, func(w io.Writer) {
		if len(params) == 0 {
			fmt.Fprintln(w, "No saved parameters.")
			return
		}
		for _, p := range params {
			fmt.Fprintf(w, "%-16s %g\n", p.Name, p.Value)
		}
	})
}

func paramsGet(opts *ParamsOptions, st *store.Store, name string, cmd *cobra.Command) error {
	name = store.CanonicalParamName(name)
	value, found, err := st.Param(commandContext(cmd), name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read param", err)
	}
	f := opts.formatter(cmd)
	if !found {
		_ = f.Error("E_PARAM_NOT_FOUND", fmt.Sprintf("parameter %s is not saved", name), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("parameter %s is not saved", name))
	}
	p := store.Param{Name: name, Value: value}
	return f.Success(p, func(w io.Writer) { fmt.Fprintf(w, "%s %g\n", p.Name, p.Value) })
}

func paramsSet(opts *ParamsOptions, st *store.Store, name string, value float64, cmd *cobra.Command) error {
	if err := st.SaveParam(commandContext(cmd), name, value); err != nil {
		return WrapExitError(ExitCommandError, "failed to save param", err)
	}
	p := store.Param{Name: store.CanonicalParamName(name), Value: value}
	opts.Logger().Debug("param saved", "name", p.Name, "value", p.Value)
	return opts.formatter(cmd).Success(p, func(w io.Writer) { fmt.Fprintf(w, "%s = %g\n", p.Name, p.Value) })
}

func paramsDelete(opts *ParamsOptions, st *store.Store, name string, cmd *cobra.Command) error {
	name = store.CanonicalParamName(name)
	if err := st.DeleteParam(commandContext(cmd), name); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete param", err)
	}
	return opts.formatter(cmd).Success(map[string]string{"deleted": name}, func(w io.Writer) {
		fmt.Fprintf(w, "%s deleted\n", name)
	})
}
