package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vvka-141/reconnect/internal/tui"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <message> [message...]",
	Short: "Show how error messages are classified",
	Long: `Classifies each argument as if a driver had returned it as an error, using
the built-in entries followed by the error_messages of the configuration.

Examples:
  reconnect classify "MySQL server has gone away"
  reconnect classify --config prod.yaml "ERROR 9001: replica catching up"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	env, err := newPolicyEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	snap := env.policy.Snapshot()
	rows := make([][]string, 0, len(args))
	for _, msg := range args {
		c := snap.Classify(errors.New(msg))
		entry := c.Entry
		if entry == "" {
			entry = "-"
		}
		rows = append(rows, []string{
			msg,
			c.Class.String(),
			entry,
			strconv.FormatBool(c.Retryable()),
			strconv.FormatBool(c.RequiresForce),
		})
	}

	out := cmd.OutOrStdout()
	headers := []string{"MESSAGE", "CLASS", "ENTRY", "RETRYABLE", "FORCE ONLY"}
	fmt.Fprintln(out, tui.RenderTable(headers, rows, tui.IsStyled(out) && !rootFlags.noColor))
	return nil
}
