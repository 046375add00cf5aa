/*
	Package batch generates training samples in parallel: each worker builds a
	sample, applies a shared pipeline and hands the result to a sink.
*/
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
	"github.com/janelia-flyem/trainlabels/transform"
)

// Source returns a new input sample.  It is called concurrently.
type Source func() (*sample.Sample, error)

// Sink receives each finished sample.  It is called concurrently.
type Sink func(ctx context.Context, s *sample.Sample) error

// StoreSink returns a sink that puts samples into a store.
func StoreSink(store storage.SampleStore) Sink {
	return store.PutSample
}

// Options for a batch run.
type Options struct {
	Count    int
	Workers  int // defaults to the number of CPUs
	Source   Source
	Pipeline *transform.Pipeline
	Params   transform.Params
	Sink     Sink
}

func (opts Options) workers() int {
	if opts.Workers <= 0 {
		return runtime.NumCPU()
	}
	return opts.Workers
}

// Result of a completed batch.
type Result struct {
	IDs     []string // in generation order
	Elapsed time.Duration
}

// Run generates opts.Count samples with at most opts.Workers in flight.  The
// first error cancels the remaining work and is returned; samples already
// handed to the sink stay there.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d: %w", opts.Count, transform.ErrConfig)
	}
	if opts.Source == nil || opts.Pipeline == nil || opts.Sink == nil {
		return nil, fmt.Errorf("batch needs a source, pipeline and sink: %w", transform.ErrConfig)
	}
	timedLog := dvid.NewTimeLog()
	ids := make([]string, opts.Count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i := 0; i < opts.Count; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in, err := opts.Source()
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			out, err := opts.Pipeline.Apply(in, opts.Params)
			if err != nil {
				return fmt.Errorf("sample %d (%s): %w", i, in.ID, err)
			}
			if err := opts.Sink(gctx, out); err != nil {
				return fmt.Errorf("sample %d (%s): %w", i, out.ID, err)
			}
			ids[i] = out.ID
			dvid.Debugf("Generated sample %d/%d: %s\n", i+1, opts.Count, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		dvid.Errorf("Batch aborted: %v\n", err)
		return nil, err
	}
	timedLog.Infof("Generated %d samples with %d workers", opts.Count, opts.workers())
	return &Result{IDs: ids, Elapsed: timedLog.Elapsed()}, nil
}
