// Command rollupload writes the derived marker or allele annotation load
// file for one annotation type.
//
//	rollupload [--config file] [--output path] [--verify] <mpMarker|diseaseMarker|mpAllele|diseaseAllele>
//
// The output path defaults to $INFILE_NAME.
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
	runLoad  = app.Load
)

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "rollupload: %v\n", err)
		return 1
	}
	return 0
}

func newCommand(stdout io.Writer) *cobra.Command {
	var (
		configPath string
		outputPath string
		verify     bool
	)
	cmd := &cobra.Command{
		Use:           "rollupload <annotation-type>",
		Short:         "Roll genotype annotations up to markers or alleles",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := args[0]
			if _, ok := config.LookupSelector(selector); !ok {
				return errors.Newf("unknown annotation type: %s", selector)
			}
			cfg, err := config.Load(configPath, func(c *config.Config) {
				c.Rollup.AnnotationType = selector
				if outputPath != "" {
					c.Output.Path = outputPath
				}
			})
			if err != nil {
				return err
			}
			if cfg.Output.Path == "" {
				return errors.New("INFILE_NAME not defined in environment")
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := runLoad(cmd.Context(), cfg, log, app.Options{Verify: verify})
			if err != nil {
				log.Errorw("rollup failed", "error", err)
				return err
			}
			if res.Report != nil && !res.Report.OK() {
				return errors.Newf("failed with %d mismatches", res.Report.Mismatches)
			}
			fmt.Fprintf(stdout, "Outcome:  Generated %s successfully\n", cfg.Output.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("ROLLUP_CONFIG_FILE"), "Path to config file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Load file path (default $INFILE_NAME)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify every derived annotation against its source")
	return cmd
}
