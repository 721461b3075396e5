package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/hugenum/pkg/decimal"
)

type benchReport struct {
	Iterations int           `json:"iterations"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Stats      any           `json:"stats"`
}

func newBenchCmd(o *rootOpts) *cobra.Command {
	var (
		n        int
		distinct int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a mixed pow/sqrt/mul workload and print engine statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n <= 0 || distinct <= 0 {
				return fmt.Errorf("--n and --distinct must be positive")
			}
			eng, err := o.engine()
			if err != nil {
				return err
			}
			start := time.Now()
			acc := decimal.One()
			for i := range n {
				k := i % distinct
				p := eng.Pow(decimal.FromInt(int64(k+2)), decimal.FromInt(int64(10*k+100)))
				acc = eng.Mul(acc, eng.Sqrt(p))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(benchReport{
				Iterations: n,
				Elapsed:    time.Since(start),
				Stats:      eng.Stats(),
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 10000, "iterations")
	cmd.Flags().IntVar(&distinct, "distinct", 64, "distinct operands, which bounds the cache working set")
	return cmd
}
