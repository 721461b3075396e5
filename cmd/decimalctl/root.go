package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/pkg/engine"
	"github.com/mohammed-shakir/hugenum/pkg/safeconv"
)

type rootOpts struct {
	cfgFile string
	lang    string
}

// engine builds a fresh engine from the global flags.
func (o *rootOpts) engine() (*engine.Engine, error) {
	cfg := config.Defaults()
	if o.cfgFile != "" {
		if err := config.LoadFile(o.cfgFile, &cfg); err != nil {
			return nil, err
		}
	}
	tag, err := language.Parse(o.lang)
	if err != nil {
		return nil, fmt.Errorf("invalid --lang %q: %w", o.lang, err)
	}
	return engine.New(cfg, engine.WithConverterOptions(safeconv.WithLanguage(tag))), nil
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{}
	root := &cobra.Command{
		Use:   "decimalctl",
		Short: "Inspect and evaluate extreme-magnitude decimals",
		Long: `decimalctl parses, formats and evaluates decimals far beyond float64,
from plain numbers like 1234.5 through 1e400 to towers like ee20 or (e^5)320.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "YAML or TOML config file")
	root.PersistentFlags().StringVar(&o.lang, "lang", "en", "BCP 47 locale for formatted output")

	root.AddCommand(
		newParseCmd(o),
		newFormatCmd(o),
		newDescribeCmd(o),
		newEvalCmd(o),
		newBenchCmd(o),
	)
	return root
}

func newParseCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <value>...",
		Short: "Print the canonical form of each value, recovering malformed input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := o.engine()
			if err != nil {
				return err
			}
			conv := eng.Converter()
			for _, a := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a, conv.ToString(eng.Parse(a)))
			}
			return nil
		},
	}
}

func newFormatCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "format <value>...",
		Short: "Print each value formatted for display",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := o.engine()
			if err != nil {
				return err
			}
			conv := eng.Converter()
			for _, a := range args {
				fmt.Fprintln(cmd.OutOrStdout(), conv.Format(eng.Parse(a)))
			}
			return nil
		},
	}
}

func newDescribeCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <value>",
		Short: "Show how a value is classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := o.engine()
			if err != nil {
				return err
			}
			conv := eng.Converter()
			d := eng.Parse(args[0])
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "canonical:  %s\n", conv.ToString(d))
			fmt.Fprintf(w, "formatted:  %s\n", conv.Format(d))
			fmt.Fprintf(w, "magnitude:  %s\n", conv.DescribeMagnitude(d))
			fmt.Fprintf(w, "extreme:    %t\n", conv.IsExtreme(d))
			fmt.Fprintf(w, "layer:      %d\n", d.Layer())
			fmt.Fprintf(w, "well-formed: %t\n", safeconv.IsValidDecimalString(args[0]))
			return nil
		},
	}
}
