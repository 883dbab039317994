// File: cmd/fdwait/stats.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-wait/control"
)

var statsCmd = &cobra.Command{
	Use:   "stats DUMP",
	Short: "Print a debug dump written by watch --dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		state, err := control.DecodeState(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		printState(cmd.OutOrStdout(), state)
		return nil
	},
}

var keyColor = color.New(color.FgCyan)

func printState(out io.Writer, state map[string]any) {
	keys := make([]string, 0, len(state))
	width := 0
	for k := range state {
		keys = append(keys, k)
		if w := runewidth.StringWidth(k); w > width {
			width = w
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		keyColor.Fprint(out, runewidth.FillRight(k, width))
		fmt.Fprintf(out, "  %v\n", state[k])
	}
}
