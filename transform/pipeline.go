package transform

import (
	"fmt"
	"strings"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
)

// Pipeline is an ordered sequence of transforms.  A Pipeline is read-only once
// built, so one instance can be applied to independent samples concurrently.
type Pipeline struct {
	steps []Transform
}

// NewPipeline returns a pipeline of the given transforms in order.
func NewPipeline(ts ...Transform) (*Pipeline, error) {
	p := &Pipeline{steps: make([]Transform, 0, len(ts))}
	for _, t := range ts {
		if err := p.Append(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewPipelineFromConfigs builds each configured transform and returns them as a
// pipeline.
func NewPipelineFromConfigs(configs []Config) (*Pipeline, error) {
	p := &Pipeline{steps: make([]Transform, 0, len(configs))}
	for i, c := range configs {
		t, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("transform %d: %w", i, err)
		}
		if err := p.Append(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Append adds a transform to the end of the pipeline.
func (p *Pipeline) Append(t Transform) error {
	if t == nil {
		return fmt.Errorf("can't append nil transform: %w", ErrConfig)
	}
	p.steps = append(p.steps, t)
	return nil
}

// Len returns the number of steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Types returns the type of each step in order.
func (p *Pipeline) Types() []string {
	types := make([]string, len(p.steps))
	for i, t := range p.steps {
		types[i] = t.Type()
	}
	return types
}

// Targets returns the keys written by the pipeline, in step order and without
// companion mask keys.
func (p *Pipeline) Targets() []string {
	var targets []string
	seen := make(map[string]bool)
	for _, t := range p.steps {
		tt, ok := t.(Targeter)
		if !ok {
			continue
		}
		for _, k := range tt.Targets() {
			if !seen[k] {
				seen[k] = true
				targets = append(targets, k)
			}
		}
	}
	return targets
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline [%s]", strings.Join(p.Types(), " -> "))
}

// Apply folds the sample through every step in order with the same params.  It
// stops at the first failing step.
func (p *Pipeline) Apply(s *sample.Sample, params Params) (*sample.Sample, error) {
	timedLog := dvid.NewTimeLog()
	var err error
	for i, t := range p.steps {
		if s, err = t.Apply(s, params); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, t.Type(), err)
		}
	}
	timedLog.Debugf("Applied %d transforms to sample %s (%s)", len(p.steps), s.ID, params)
	return s, nil
}
