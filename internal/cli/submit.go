package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	updateID      string
	dryRun        bool
	submitTimeout time.Duration
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit <source>",
	Short: "Convert a CodeMeta document and submit it to the Marketplace",
	Long: `Submit converts one source and sends each resulting record to the
Marketplace ingestion API. Without --update a new tool/service is created
(POST); with --update the existing item with that persistent ID is replaced
(PUT), which requires the source to describe exactly one tool.

Credentials come from --username/--password, the config file or
CODEMETA2MP_MARKETPLACE_USERNAME / CODEMETA2MP_MARKETPLACE_PASSWORD.

Example:
  codemeta2mp submit codemeta.json
  codemeta2mp submit codemeta.json --update abC123
  codemeta2mp submit codemeta.json --base-url https://marketplace-api.sshopencloud.eu --auth basic`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&updateID, "update", "", "persistent ID of the Marketplace item to replace")
	submitCmd.Flags().BoolVar(&dryRun, "dry-run", false, "convert and validate, but do not submit")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute, "overall timeout")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	source := args[0]

	s, err := newSession(cmd, !dryRun)
	if err != nil {
		return err
	}
	defer s.finish()

	ctx, cancel := context.WithTimeout(cmd.Context(), submitTimeout)
	defer cancel()

	result, err := s.pipeline.Convert(ctx, source)
	if err != nil {
		return err
	}

	if dryRun {
		for _, conv := range result.Conversions {
			if err := conv.Record.Validate(); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "✓ %d record(s) ready to submit (dry run)\n", len(result.Conversions))
		return s.renderer.RenderRecords(cmd.OutOrStdout(), result.Conversions)
	}

	if err := s.pipeline.Submit(ctx, result, updateID); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, sub := range result.Submissions {
		if err := enc.Encode(sub); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s %s (%s)\n", sub.Method, sub.Item.Label, sub.Item.PersistentID)
	}
	return nil
}
