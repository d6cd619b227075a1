// Command rollupcheck reruns the rollup for each annotation type and checks
// that every derived annotation matches the genotype annotation its
// provenance property names. It exits 1 on any mismatch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"genorollup/internal/app"
	"genorollup/internal/config"
	"genorollup/internal/logger"
)

var (
	exitFunc = os.Exit
	runCheck = app.Check
)

// defaultSelectors are checked when no annotation type is given.
var defaultSelectors = []string{config.SelectorDiseaseMarker, config.SelectorMPMarker}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "rollupcheck: %v\n", err)
		return 1
	}
	return 0
}

func newCommand(stdout io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "rollupcheck [annotation-type...]",
		Short:         "Verify derived annotations against their source annotations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors := args
			if len(selectors) == 0 {
				selectors = defaultSelectors
			}
			mismatches := 0
			for _, selector := range selectors {
				if _, ok := config.LookupSelector(selector); !ok {
					return errors.Newf("unknown annotation type: %s", selector)
				}
				n, err := checkOne(cmd.Context(), configPath, selector, stdout)
				if err != nil {
					return errors.Wrap(err, selector)
				}
				mismatches += n
			}
			if mismatches > 0 {
				return errors.Newf("failed with %d mismatches", mismatches)
			}
			fmt.Fprintln(stdout, "All records matched")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("ROLLUP_CONFIG_FILE"), "Path to config file")
	return cmd
}

func checkOne(ctx context.Context, configPath, selector string, stdout io.Writer) (int, error) {
	cfg, err := config.Load(configPath, func(c *config.Config) {
		c.Rollup.AnnotationType = selector
	})
	if err != nil {
		return 0, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return 0, err
	}
	defer func() { _ = log.Sync() }()

	res, err := runCheck(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Errorw("check failed", "error", err)
		return 0, err
	}
	r := res.Report
	fmt.Fprintf(stdout, "%s: %d targets, %d rows, %d mismatches\n", selector, r.Targets, r.Rows, r.Mismatches)
	return r.Mismatches, nil
}
