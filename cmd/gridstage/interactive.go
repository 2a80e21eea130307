package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/checkpoint"
	"github.com/owalsh/gridstage/internal/pkg/filter"
	"github.com/owalsh/gridstage/internal/pkg/session"
	"github.com/owalsh/gridstage/internal/pkg/solver"
)

const interactiveHelp = `Available commands:
  base                      build the base model
  add <kind|all> <filters>  add components, e.g. add Generator technology=wind
  inspect [aspect]          summary | detailed | balance | optimization | stages | all
  validate [types...]       structure | balance | connectivity | feasibility
  optimize                  run the optimization backend
  save <name> [overwrite]   save a checkpoint
  load <name>               load a checkpoint
  checkpoints               list saved checkpoints
  show <technologies|carriers|areas>
  help                      show this help
  quit                      exit

Filters are key=value pairs, values comma-separated:
  add Generator technology=wind,solar
  add Generator carrier=electricity
  add Store technology=battery`

// newInteractiveCmd runs the line-oriented shell around one build session.
func newInteractiveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Drive a build session from an interactive shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			sess, err := newSession(cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			stopArchives, err := attachArchives(sess, cfg, logger, cmd)
			if err != nil {
				return err
			}
			defer stopArchives()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gridstage interactive (year %d, %s)\n", cfg.Year, cfg.Timeseries)
			fmt.Fprintln(out, "Type 'help' for commands, 'quit' to exit")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "\ngridstage> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				parts := strings.Fields(line)
				if parts[0] == "quit" || parts[0] == "exit" {
					return nil
				}
				if err := dispatch(cmd.Context(), sess, out, parts[0], parts[1:]); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
			}
		},
	}
}

func dispatch(ctx context.Context, sess *session.Session, out io.Writer, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(out, interactiveHelp)
		return nil

	case "base":
		if err := sess.BuildBase(); err != nil {
			return err
		}
		fmt.Fprintf(out, "base model built, %d catalog rows\n", sess.Catalog().Len())
		return nil

	case "add":
		return addCommand(sess, out, args)

	case "inspect":
		aspect := session.AspectSummary
		if len(args) > 0 {
			aspect = args[0]
		}
		report, err := sess.Inspect(aspect)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report)
		return nil

	case "validate":
		var types []string
		if len(args) > 0 {
			types = args
		}
		for vtype, result := range sess.Validate(types) {
			fmt.Fprintf(out, "%s: %s\n", vtype, result.Status)
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "  - %s\n", w)
			}
		}
		return nil

	case "optimize":
		result, err := sess.Optimize(ctx)
		if err != nil {
			var inf *solver.InfeasibleError
			if errors.As(err, &inf) {
				fmt.Fprintf(out, "infeasible: supply %.1f MW against demand %.1f MW\n",
					inf.Snapshot.Supply, inf.Snapshot.Demand)
			}
			return err
		}
		fmt.Fprintf(out, "optimization %s, objective %.2f\n", result.Status, result.Objective)
		return nil

	case "save":
		if len(args) < 1 {
			return fmt.Errorf("usage: save <name> [overwrite]")
		}
		overwrite := len(args) > 1 && args[1] == "overwrite"
		err := sess.SaveCheckpoint(args[0], overwrite)
		if errors.Is(err, checkpoint.ErrConflict) {
			return fmt.Errorf("checkpoint %q exists; use 'save %s overwrite'", args[0], args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "checkpoint saved: %s\n", args[0])
		return nil

	case "load":
		if len(args) < 1 {
			return fmt.Errorf("usage: load <name>")
		}
		if err := sess.LoadCheckpoint(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "checkpoint loaded: %s (%d rows, %d stages)\n",
			args[0], len(sess.Rows()), len(sess.History()))
		return nil

	case "checkpoints":
		names, err := sess.Checkpoints()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil

	case "show":
		if len(args) < 1 {
			return fmt.Errorf("usage: show <technologies|carriers|areas>")
		}
		return showCatalog(sess.Catalog(), out, args[0])

	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func addCommand(sess *session.Session, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: add <kind|all> <filters>")
	}
	var kind catalog.Kind
	if args[0] != "all" {
		kind = catalog.Kind(args[0])
		if !kind.Valid() {
			return fmt.Errorf("unknown component kind %q", args[0])
		}
	}
	f, err := filter.Parse(args[1:])
	if err != nil {
		return err
	}

	before := sess.Counts()
	name := strings.Join(args, " ")
	summary, err := sess.AddComponents(name, kind, f)
	if err != nil {
		return err
	}
	if summary.NoMatch {
		fmt.Fprintln(out, "no components match the filter")
		return nil
	}
	fmt.Fprintf(out, "added %d components (%d total)\n", summary.Added, summary.Total)
	fmt.Fprintln(out, session.Comparison(before, sess.Counts()))
	return nil
}

func showCatalog(cat catalog.Catalog, out io.Writer, what string) error {
	var values []string
	switch what {
	case "technologies":
		values = cat.Technologies()
	case "carriers":
		values = cat.Carriers()
	case "areas":
		values = cat.Areas()
	default:
		return fmt.Errorf("unknown listing %q", what)
	}
	if len(values) == 0 {
		fmt.Fprintln(out, "catalog not loaded; run 'base' first")
		return nil
	}
	for _, v := range values {
		fmt.Fprintln(out, v)
	}
	return nil
}
