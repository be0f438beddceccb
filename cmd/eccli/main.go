// Command eccli exercises the engine core on the software accelerator:
// key generation, ECDSA signing and verification, ECDH and curve listing.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/internal/flogging"
)

var logger = flogging.MustGetLogger("eccli")

// cli carries the state shared by every subcommand.
type cli struct {
	v   *viper.Viper
	reg *prometheus.Registry
}

// newRootCmd builds the command tree writing results to out.
func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	c := &cli{v: v, reg: prometheus.NewRegistry()}
	root := &cobra.Command{
		Use:           "eccli",
		Short:         "Elliptic curve engine command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(v)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !v.GetBool("metrics") {
				return nil
			}
			return c.dumpMetrics(cmd.ErrOrStderr())
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("curve", "P-256", "curve name")
	flags.String("config", "", "YAML configuration file")
	flags.String("logging-level", "", "logging level (debug, info, warn, error)")
	flags.Bool("metrics", false, "print engine metrics to stderr after the command")
	v.BindPFlag("curve", flags.Lookup("curve"))
	v.BindPFlag("config", flags.Lookup("config"))
	v.BindPFlag("logging_level", flags.Lookup("logging-level"))
	v.BindPFlag("metrics", flags.Lookup("metrics"))

	root.AddCommand(c.keygenCmd())
	root.AddCommand(c.signCmd())
	root.AddCommand(c.verifyCmd())
	root.AddCommand(c.ecdhCmd())
	root.AddCommand(curvesCmd())
	return root
}

// dumpMetrics writes the gathered engine metrics in the text exposition
// format.
func (c *cli) dumpMetrics(w io.Writer) error {
	families, err := c.reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// initialize reads the configuration file and sets up logging.
func initialize(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return flogging.Init(flogging.Config{
		Format:  v.GetString("logging.format"),
		LogSpec: v.GetString("logging_level"),
	})
}

func main() {
	v := ecengine.NewViper()
	// On failure Cobra returns the error; print it and exit non-zero.
	if err := newRootCmd(v, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
