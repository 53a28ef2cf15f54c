package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	convertOutputDir string
	convertTimeout   time.Duration
	convertSummary   bool
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <source>...",
	Short: "Convert CodeMeta documents to Marketplace tool records",
	Long: `Convert reads each source (a file path, - for stdin, or an http(s) URL),
maps every SoftwareSourceCode it describes and prints the Marketplace
records as JSON, one document per line.

Example:
  codemeta2mp convert codemeta.json
  codemeta2mp convert codemeta.json --summary --check-links
  codemeta2mp convert https://raw.githubusercontent.com/proycon/codemetapy/master/codemeta.json --pretty
  cat codemeta.json | codemeta2mp convert -
  codemeta2mp convert frog/codemeta.json ucto/codemeta.json --output-dir ./records`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertOutputDir, "output-dir", "", "write one JSON file per record into this directory instead of stdout")
	convertCmd.Flags().DurationVar(&convertTimeout, "timeout", 2*time.Minute, "overall timeout")
	convertCmd.Flags().BoolVar(&convertSummary, "summary", false, "print a per-record warning summary to stderr")
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.finish()

	ctx, cancel := context.WithTimeout(cmd.Context(), convertTimeout)
	defer cancel()

	for _, source := range args {
		result, err := s.pipeline.Convert(ctx, source)
		if err != nil {
			return err
		}
		if convertSummary {
			s.renderer.RenderSummary(cmd.ErrOrStderr(), result)
		}

		if convertOutputDir != "" {
			paths, err := s.renderer.RenderJSON(result, convertOutputDir, "")
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
			}
			continue
		}

		if err := s.renderer.RenderRecords(cmd.OutOrStdout(), result.Conversions); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
