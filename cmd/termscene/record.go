package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/dcosson/termscene/internal/record"
)

func newRecordCmd() *cobra.Command {
	var scriptPath string
	var cmdStr string
	var outPath string
	var schedule string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Drive a scripted procedure against a headless PTY and write a dump",
		Long: `record spawns a command under a headless PTY, drives it through an
ordered list of input/wait/snapshot steps, and writes each snapshot step's
capture to a dump file.

Use --script to supply the full YAML script (command, steps, dimensions).
Use --cmd as a shorthand for a minimal script that spawns the given
shell-quoted command, waits for its output to settle, and takes a single
snapshot: convenient for one-off captures that don't need input steps.`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			script, err := loadScript(scriptPath, cmdStr)
			if err != nil {
				return err
			}

			runOnce := func() error {
				count, err := record.Run(script, outPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cobraCmd.OutOrStdout(), "wrote %d snapshot(s) to %s\n", count, outPath)
				return nil
			}

			if schedule == "" {
				return runOnce()
			}
			return record.Schedule(context.Background(), schedule, runOnce, func(err error) {
				log.Printf("termscene: record: scheduled run failed: %v", err)
			})
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "path to a YAML record script")
	cmd.Flags().StringVar(&cmdStr, "cmd", "", "shell-quoted command, shorthand for a minimal wait-then-snapshot script")
	cmd.Flags().StringVar(&outPath, "out", "", "dump file path to write (required)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "RFC 5545 RRULE string to re-run the script on a recurring cadence")
	return cmd
}

func loadScript(scriptPath, cmdStr string) (*record.Script, error) {
	switch {
	case scriptPath != "":
		data, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("read script %s: %w", scriptPath, err)
		}
		return record.ParseScript(data)
	case cmdStr != "":
		argv, err := shlex.Split(cmdStr)
		if err != nil {
			return nil, fmt.Errorf("parse --cmd: %w", err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("--cmd must not be empty")
		}
		return &record.Script{
			Command:    argv,
			Cols:       record.DefaultCols,
			Rows:       record.DefaultRows,
			Scrollback: record.DefaultScrollback,
			Steps: []record.Step{
				{Kind: record.StepWait, Wait: record.WaitCond{
					StableMs:  500,
					TimeoutMs: record.DefaultTimeoutMs,
					PollMs:    record.DefaultPollMs,
				}},
				{Kind: record.StepSnapshot},
			},
		}, nil
	default:
		return nil, fmt.Errorf("one of --script or --cmd is required")
	}
}
