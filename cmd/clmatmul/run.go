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
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/go-highway/clmatmul/cl"
	"github.com/go-highway/clmatmul/kernels"
	"github.com/go-highway/clmatmul/matmul"
)

// plan is a validated invocation.
type plan struct {
	a, b     matmul.Dimensions
	variant  matmul.Variant
	elemType matmul.ElementType
	jobs     int
	opts     *options
}

func (o *options) plan(a, b matmul.Dimensions) (*plan, error) {
	et, err := matmul.ParseElementType(o.elemType)
	if err != nil {
		return nil, fmt.Errorf("--type: %w", err)
	}
	variant := matmul.VariantTiled
	if o.naive {
		variant = matmul.VariantNaive
	}
	if variant == matmul.VariantTiled && et != matmul.Float32 {
		return nil, fmt.Errorf("--type %s needs --naive: %w", o.elemType, matmul.ErrUnsupportedType)
	}
	if o.jobs < 1 {
		return nil, fmt.Errorf("--jobs %d must be at least 1", o.jobs)
	}
	return &plan{a: a, b: b, variant: variant, elemType: et, jobs: o.jobs, opts: o}, nil
}

// engineOptions returns the options of one job. Jobs get consecutive seeds.
// --work-groups only applies to the tiled variant.
func (p *plan) engineOptions(job int) []matmul.Option {
	var opts []matmul.Option
	if p.variant == matmul.VariantTiled {
		opts = append(opts, matmul.WithWorkGroups(p.opts.workGroups))
	}
	if p.opts.kernelDir != "" {
		opts = append(opts, matmul.WithPrograms(kernels.Dir(p.opts.kernelDir)))
	}
	if p.opts.seeded {
		opts = append(opts, matmul.WithSeed(p.opts.seed+uint64(job)))
	}
	return opts
}

// measure is one printed value.
type measure struct {
	label string
	value string
}

// run executes every job, each on its own device context and queue, and
// prints their measures in job order once all have finished.
func (p *plan) run(out io.Writer) error {
	reports := make([][]measure, p.jobs)
	var g errgroup.Group
	for job := range p.jobs {
		g.Go(func() error {
			r, err := p.runJob(job)
			if err != nil {
				if p.jobs > 1 {
					return fmt.Errorf("job %d: %w", job, err)
				}
				return err
			}
			reports[job] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	title := cases.Title(language.English)
	for job, r := range reports {
		for _, m := range r {
			if p.jobs > 1 {
				fmt.Fprintf(out, "job %d: ", job)
			}
			if p.opts.verbose {
				fmt.Fprintf(out, "%s: ", sentenceCase(title, m.label))
			}
			fmt.Fprintln(out, m.value)
		}
	}
	return nil
}

// sentenceCase capitalizes the first word of label.
func sentenceCase(c cases.Caser, label string) string {
	first, rest, found := strings.Cut(label, " ")
	if !found {
		return c.String(first)
	}
	return c.String(first) + " " + rest
}

func (p *plan) runJob(job int) ([]measure, error) {
	dc, err := cl.NewDeviceContext()
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	e, err := matmul.New(dc, p.variant, p.a, p.b, p.elemType, p.engineOptions(job)...)
	if err != nil {
		return nil, err
	}
	if err := e.Compute(); err != nil {
		return nil, err
	}

	var r []measure
	if p.opts.time {
		t := e.Timing()
		r = append(r,
			measure{"buffer copy time onto device", seconds(t.Upload)},
			measure{"matrix multiplication execution time", seconds(t.Execution)},
			measure{"buffer copy time off device", seconds(t.Download)},
		)
	}
	if p.opts.timeReference {
		d, err := e.ReferenceTime()
		if err != nil {
			return nil, err
		}
		r = append(r, measure{"reference matrix multiplication time", seconds(d)})
	}
	if p.opts.accuracy {
		iv, err := e.Accuracy()
		if err != nil {
			return nil, err
		}
		r = append(r,
			measure{"accuracy lower bound", strconv.FormatFloat(iv.Low, 'g', -1, 64)},
			measure{"accuracy higher bound", strconv.FormatFloat(iv.High, 'g', -1, 64)},
		)
	}
	return r, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'g', -1, 64)
}
