package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ekisa-team/swapface/internal/serverless"
)

var serverlessEvent string

var serverlessCmd = &cobra.Command{
	Use:   "serverless",
	Short: "Run one job event and print its output envelope",
	Long: "Reads a job event as JSON from --event or stdin and writes {\"output\": ...} to stdout. " +
		"Swap failures are reported in the envelope and the command still exits 0.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := []byte(serverlessEvent)
		if serverlessEvent == "" {
			var err error
			if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
				return writeEnvelope(cmd.OutOrStdout(), serverless.Envelope{
					Output: serverless.Output{Message: fmt.Sprintf("failed to read event: %v", err)},
				})
			}
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return writeEnvelope(cmd.OutOrStdout(), serverless.Envelope{
				Output: serverless.Output{Message: fmt.Sprintf("failed to load config: %v", err)},
			})
		}

		a, err := newApp(cfg)
		if err != nil {
			return writeEnvelope(cmd.OutOrStdout(), serverless.Envelope{
				Output: serverless.Output{Message: fmt.Sprintf("failed to start: %v", err)},
			})
		}
		defer a.close()

		return writeEnvelope(cmd.OutOrStdout(), a.handler.HandleJSON(cmd.Context(), raw))
	},
}

func writeEnvelope(w io.Writer, env serverless.Envelope) error {
	if err := json.NewEncoder(w).Encode(env); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}

func init() {
	serverlessCmd.Flags().StringVar(&serverlessEvent, "event", "", "Job event JSON; read from stdin when empty")
	rootCmd.AddCommand(serverlessCmd)
}
