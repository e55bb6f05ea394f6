package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"twister/pkg/mt19937"
)

func newPredictCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Clone a generator from 624 outputs on stdin and print what comes next",
		Long: `predict reads whitespace-separated 32-bit outputs from stdin. The first 624
reconstruct the generator; any further values are checked against the
predictions before the next --count predictions are printed as
"<raw> <guess>" lines.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load()
			if err != nil {
				return err
			}
			return runPredict(cmd.InOrStdin(), cmd.OutOrStdout(), s.Range, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of predictions to print")
	return cmd
}

func runPredict(in io.Reader, out io.Writer, rng uint32, count int) error {
	var window mt19937.Window
	var extra []uint32

	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			return fmt.Errorf("value %d: %w", window.Len()+len(extra)+1, err)
		}
		if !window.Full() {
			window.Add(uint32(v))
			continue
		}
		extra = append(extra, uint32(v))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read outputs: %w", err)
	}

	gen, err := window.Clone()
	if err != nil {
		return err
	}
	for i, want := range extra {
		if got := gen.Uint32(); got != want {
			return fmt.Errorf("value %d: predicted %d, input has %d", mt19937.StateSize+i+1, got, want)
		}
	}

	for i := 0; i < count; i++ {
		v := gen.Uint32()
		fmt.Fprintf(out, "%d %d\n", v, mt19937.GuessRange(v, rng))
	}
	return nil
}
