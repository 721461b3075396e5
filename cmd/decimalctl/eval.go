package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/engine"
)

type binaryFn func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal

type unaryFn func(e *engine.Engine, x decimal.Decimal) decimal.Decimal

var binaryOps = map[string]binaryFn{
	"+":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Add(a, b) },
	"-":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Sub(a, b) },
	"*":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Mul(a, b) },
	"x":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Mul(a, b) },
	"/":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Div(a, b) },
	"^":   func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Pow(a, b) },
	"pow": func(e *engine.Engine, a, b decimal.Decimal) decimal.Decimal { return e.Pow(a, b) },
}

var unaryOps = map[string]unaryFn{
	"exp":  func(e *engine.Engine, x decimal.Decimal) decimal.Decimal { return e.Exp(x) },
	"ln":   func(e *engine.Engine, x decimal.Decimal) decimal.Decimal { return e.Ln(x) },
	"sqrt": func(e *engine.Engine, x decimal.Decimal) decimal.Decimal { return e.Sqrt(x) },
}

func newEvalCmd(o *rootOpts) *cobra.Command {
	var formatted bool
	cmd := &cobra.Command{
		Use:   "eval (<a> <op> <b> | <fn> <x>)",
		Short: "Evaluate one operation",
		Long: fmt.Sprintf(`Evaluate a binary operation (%s) or a function (%s).
Failed operations print 0, the same as the engine returns.`,
			strings.Join(slices.Sorted(maps.Keys(binaryOps)), " "),
			strings.Join(slices.Sorted(maps.Keys(unaryOps)), " ")),
		Example: "  decimalctl eval 1e100 '*' 3\n  decimalctl eval sqrt 1e400",
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := o.engine()
			if err != nil {
				return err
			}
			var out decimal.Decimal
			if len(args) == 2 {
				fn, ok := unaryOps[strings.ToLower(args[0])]
				if !ok {
					return fmt.Errorf("unknown function %q", args[0])
				}
				out = fn(eng, eng.Parse(args[1]))
			} else {
				fn, ok := binaryOps[strings.ToLower(args[1])]
				if !ok {
					return fmt.Errorf("unknown operator %q", args[1])
				}
				out = fn(eng, eng.Parse(args[0]), eng.Parse(args[2]))
			}
			conv := eng.Converter()
			if formatted {
				fmt.Fprintln(cmd.OutOrStdout(), conv.Format(out))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), conv.ToString(out))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&formatted, "format", "f", false, "print the display form instead of the canonical one")
	return cmd
}
