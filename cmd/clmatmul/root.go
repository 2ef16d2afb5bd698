// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-highway/clmatmul/matmul"
)

var argNames = []string{"A_ROWS", "A_COLUMNS", "B_ROWS", "B_COLUMNS"}

type options struct {
	time          bool
	accuracy      bool
	timeReference bool
	verbose       bool
	naive         bool
	elemType      string
	kernelDir     string
	seed          uint64
	seeded        bool
	jobs          int
	workGroups    int
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "clmatmul A_ROWS A_COLUMNS B_ROWS B_COLUMNS",
		Short: "Multiply two random matrices on the compute device",
		Long: `Multiply two random matrices on the compute device.

With no flags the product is computed and nothing is printed. Requested
measures are printed one per line in this order: upload, execution and
download time (-t), reference multiplication time (-n), accuracy low and high
bound (-p). Times are in seconds.`,
		Args:          cobra.ExactArgs(len(argNames)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, err := parseDimensions(args)
			if err != nil {
				return err
			}
			opts.seeded = cmd.Flags().Changed("seed")
			p, err := opts.plan(a, b)
			if err != nil {
				return err
			}
			return p.run(out)
		},
	}
	cmd.SetOut(out)
	addFlags(cmd.Flags(), opts)
	return cmd
}

func addFlags(f *pflag.FlagSet, opts *options) {
	f.SortFlags = false
	f.BoolVarP(&opts.time, "time", "t", false, "print upload, execution and download times")
	f.BoolVarP(&opts.timeReference, "time-reference", "n", false, "print the time of the host reference multiplication")
	f.BoolVarP(&opts.accuracy, "accuracy", "p", false, "print the low and high bound of device result minus reference")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "label every printed value")
	f.BoolVar(&opts.naive, "naive", false, "use the naive engine instead of the tiled one")
	f.StringVar(&opts.elemType, "type", "float", "element type: float or int (int needs --naive)")
	f.StringVar(&opts.kernelDir, "kernels", "", "load device programs from this directory")
	f.Uint64Var(&opts.seed, "seed", 0, "seed for the random matrices (default: random)")
	f.IntVar(&opts.jobs, "jobs", 1, "number of independent engines to run concurrently")
	f.IntVar(&opts.workGroups, "work-groups", matmul.DefaultWorkGroups, "work groups of the tiled engine (power of two)")
}

// parseDimensions validates the four positional arguments.
func parseDimensions(args []string) (a, b matmul.Dimensions, err error) {
	vals := make([]int, len(args))
	for i, s := range args {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return a, b, fmt.Errorf("%s: %q is not a positive integer", argNames[i], s)
		}
		vals[i] = n
	}
	a = matmul.Dimensions{Rows: vals[0], Cols: vals[1]}
	b = matmul.Dimensions{Rows: vals[2], Cols: vals[3]}
	if !a.Compatible(b) {
		return a, b, fmt.Errorf("cannot multiply matrices: %d != %d: %w", a.Cols, b.Rows, matmul.ErrIncompatibleDimensions)
	}
	return a, b, nil
}
