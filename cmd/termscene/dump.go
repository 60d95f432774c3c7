package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dcosson/termscene/internal/dump"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Inspect a termscene dump file",
	}
	cmd.AddCommand(newDumpStatsCmd(), newDumpReplayCmd())
	return cmd
}

func newDumpStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dump-file>",
		Short: "Summarize a dump file's header, frame counts, and duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			r, err := dump.Open(args[0])
			if err != nil {
				return err
			}
			header := r.Header()
			stats := r.Stats()

			if isatty.IsTerminal(os.Stdout.Fd()) {
				fmt.Fprintf(cobraCmd.OutOrStdout(), "command:    %s %s\n", header.Command, strings.Join(header.Args, " "))
				fmt.Fprintf(cobraCmd.OutOrStdout(), "dimensions: %dx%d (scrollback %d)\n", header.Cols, header.Rows, header.Scrollback)
				fmt.Fprintf(cobraCmd.OutOrStdout(), "keyframes:  %d\n", stats.Keyframes)
				fmt.Fprintf(cobraCmd.OutOrStdout(), "deltas:     %d\n", stats.Deltas)
				if stats.Duration != nil {
					fmt.Fprintf(cobraCmd.OutOrStdout(), "duration:   %dms .. %dms\n", stats.Duration.Start, stats.Duration.End)
				} else {
					fmt.Fprintf(cobraCmd.OutOrStdout(), "duration:   (empty)\n")
				}
				return nil
			}

			return json.NewEncoder(cobraCmd.OutOrStdout()).Encode(map[string]any{
				"header": header,
				"stats":  stats,
			})
		},
	}
}

func newDumpReplayCmd() *cobra.Command {
	var fromStr string

	cmd := &cobra.Command{
		Use:   "replay <dump-file>",
		Short: "Replay a dump file's snapshots to stdout, one rendered screen per frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			r, err := dump.Open(args[0])
			if err != nil {
				return err
			}

			var from *int64
			if fromStr != "" {
				ts, err := strconv.ParseInt(fromStr, 10, 64)
				if err != nil {
					return fmt.Errorf("--from must be a millisecond timestamp: %w", err)
				}
				from = &ts
			}

			out := cobraCmd.OutOrStdout()
			for entry := range r.Snapshots(from) {
				fmt.Fprintf(out, "--- t=%dms ---\n", entry.Snapshot.Timestamp)
				for _, line := range entry.Snapshot.Lines {
					fmt.Fprintln(out, line.Text())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromStr, "from", "", "replay only snapshots at or after this millisecond timestamp")
	return cmd
}
