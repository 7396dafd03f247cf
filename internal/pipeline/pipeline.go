// Package pipeline runs an endpoint as an ordered list of named stages over
// a request-scoped state value. The first stage that fails stops the run;
// Halt stops it successfully.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("merchantapi/pipeline")

// Halt ends a run early without error. Stages return it when the response
// is already decided, e.g. an empty list for a missing business unit.
var Halt = errors.New("pipeline: halt")

// Stage is one named step.
type Stage[S any] struct {
	Name string
	Run  func(ctx context.Context, s *S) error
}

// Step is a constructor that keeps stage lists readable.
func Step[S any](name string, run func(ctx context.Context, s *S) error) Stage[S] {
	return Stage[S]{Name: name, Run: run}
}

// Observer is told about every stage outcome. err is nil on success.
type Observer interface {
	StageDone(ctx context.Context, operation, stage string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, operation, stage string, err error)

func (f ObserverFunc) StageDone(ctx context.Context, operation, stage string, err error) {
	f(ctx, operation, stage, err)
}

// StageError records where a run stopped.
type StageError struct {
	Operation string
	Stage     string
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %s: %v", e.Operation, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is an operation made of stages.
type Pipeline[S any] struct {
	operation string
	stages    []Stage[S]
	observers []Observer
}

// New builds a pipeline for operation.
func New[S any](operation string, stages ...Stage[S]) *Pipeline[S] {
	return &Pipeline[S]{operation: operation, stages: stages}
}

// Observe appends observers. Nil observers are ignored.
func (p *Pipeline[S]) Observe(obs ...Observer) *Pipeline[S] {
	for _, o := range obs {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
	return p
}

// Run executes the stages in order against state.
func (p *Pipeline[S]) Run(ctx context.Context, state *S) error {
	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Operation: p.operation, Stage: st.Name, Err: err}
		}
		err := p.runStage(ctx, st, state)
		if errors.Is(err, Halt) {
			p.notify(ctx, st.Name, nil)
			return nil
		}
		p.notify(ctx, st.Name, err)
		if err != nil {
			return &StageError{Operation: p.operation, Stage: st.Name, Err: err}
		}
	}
	return nil
}

func (p *Pipeline[S]) runStage(ctx context.Context, st Stage[S], state *S) error {
	ctx, span := tracer.Start(ctx, p.operation+"."+st.Name)
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.operation", p.operation))

	err := st.Run(ctx, state)
	if err != nil && !errors.Is(err, Halt) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Pipeline[S]) notify(ctx context.Context, stage string, err error) {
	for _, o := range p.observers {
		o.StageDone(ctx, p.operation, stage, err)
	}
}
