package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"clawoffice.ai/internal/sim/layout"
	"clawoffice.ai/internal/sim/roster"
	"clawoffice.ai/internal/sim/routes"
)

var layoutPath string

// NewRootCmd builds the routegen command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routegen",
		Short: "Generate and check office route catalogs",
		Long: `Generate the walking routes between desks, the door and the war room
from a floor layout, or check an existing catalog file against it.

Examples:
  routegen generate --out configs/routes.json
  routegen validate configs/routes.json`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine.
			_ = godotenv.Load()
		},
	}
	def := os.Getenv("OFFICE_LAYOUT")
	cmd.PersistentFlags().StringVar(&layoutPath, "layout", def, "path to layout.yaml (default: built-in layout)")
	cmd.AddCommand(newGenerateCmd(), newValidateCmd())
	return cmd
}

func loadLayout() (*layout.Layout, error) {
	if layoutPath == "" {
		return layout.Defaults(), nil
	}
	l, err := layout.Load(layoutPath)
	if err != nil {
		return nil, fmt.Errorf("loading layout: %w", err)
	}
	return l, nil
}

func newGenerateCmd() *cobra.Command {
	var out string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a freshly generated route catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLayout()
			if err != nil {
				return err
			}
			logOut := cmd.ErrOrStderr()
			if quiet {
				logOut = io.Discard
			}
			names := roster.New(l)
			rs := routes.NewGenerator(l, names, log.New(logOut, "[routegen] ", 0)).Generate()
			cat, errs := routes.NewCatalog(rs, names)
			if len(errs) > 0 {
				return fmt.Errorf("generated catalog is invalid: %v", errs[0])
			}
			if out == "" || out == "-" {
				b, err := routes.Encode(cat.Routes())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}
			if err := routes.WriteFile(out, cat.Routes()); err != nil {
				return fmt.Errorf("writing catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d routes to %s (digest %s)\n", cat.Len(), out, cat.Digest())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress generator logs")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a route catalog file",
		Long: `Check a route catalog file against the schema and the layout.
Every route must be well formed and both endpoints must name a known
agent, the door or a war room chair.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLayout()
			if err != nil {
				return err
			}
			rs, err := routes.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			names := roster.New(l)
			cat, errs := routes.NewCatalog(rs, names)
			for _, r := range cat.Routes() {
				for _, end := range []string{r.StartName, r.EndName} {
					if !names.Known(end) {
						errs = append(errs, fmt.Errorf("route %s: unknown endpoint %q", r.ID, end))
					}
				}
			}
			w := cmd.OutOrStdout()
			for _, e := range errs {
				fmt.Fprintf(w, "  %v\n", e)
			}
			fmt.Fprintf(w, "%d routes, %d problems, digest %s\n", cat.Len(), len(errs), cat.Digest())
			if strict && len(errs) > 0 {
				return fmt.Errorf("%d problems in %s", len(errs), args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", true, "exit non-zero when any problem is found")
	return cmd
}
