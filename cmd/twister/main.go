// Command twister clones the Mersenne Twister behind a remote guessing game
// and wins it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"twister/pkg/config"
	"twister/pkg/proto"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "twister",
		Short:         "Clone a remote MT19937 from 624 outputs and predict the rest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./twister.yaml or $HOME/.twister/twister.yaml)")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.Uint32("range", 0, "guesses are drawn from [1, range]")
	pf.Int("target", 0, "score the peer requires before releasing the flag")
	a.bind(root, "verbose", "range", "target")

	root.AddCommand(
		newCrackCmd(a),
		newPredictCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// bind ties flags to the viper keys of the same name. Flags only override
// when set, so unset flags never shadow config or environment.
func (a *app) bind(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		a.bindKey(cmd, name, name)
	}
}

func (a *app) bindKey(cmd *cobra.Command, key, name string) {
	f := cmd.PersistentFlags().Lookup(name)
	if f == nil {
		f = cmd.Flags().Lookup(name)
	}
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func (a *app) load() (*config.Settings, error) {
	return config.Load(a.v, a.cfgFile)
}

// ---------------------------------------------------------
// EXIT CODES
// ---------------------------------------------------------

const (
	exitFailure = 1
	exitDesync  = 2
	exitProto   = 3
	exitNetwork = 4
)

// phaseError ties a failed session to the phase it ended in.
type phaseError struct {
	phase proto.Phase
	err   error
}

func (e *phaseError) Error() string { return e.phase.String() + ": " + e.err.Error() }
func (e *phaseError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var pe *phaseError
	if !errors.As(err, &pe) {
		return exitFailure
	}
	switch pe.phase {
	case proto.PhaseDesynchronized:
		return exitDesync
	case proto.PhaseProtocolError:
		return exitProto
	case proto.PhaseTransportError:
		return exitNetwork
	}
	return exitFailure
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
