package node

import (
	"context"
	"errors"
	"testing"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

type stubNode struct {
	name     string
	contract Contract
	run      func(ctx context.Context, in state.Bag) (state.Bag, error)
	seen     state.Bag
}

func (s *stubNode) Name() string       { return s.name }
func (s *stubNode) Contract() Contract { return s.contract }
func (s *stubNode) Run(ctx context.Context, in state.Bag) (state.Bag, error) {
	s.seen = in
	return s.run(ctx, in)
}

func newTestDispatcher(settings Settings) *Dispatcher {
	return NewDispatcher(logger.NewNop(), observability.NewMetrics(), settings)
}

func defaultSettings() Settings {
	return Settings{
		ValidationEnabled: true,
		FilterInputs:      true,
		FilterOutputs:     true,
		LogViolations:     true,
	}
}

func TestDispatchFiltersUndeclaredInputs(t *testing.T) {
	n := &stubNode{
		name: "probe",
		contract: NewContract().
			Require(state.KeyQuestion).
			Optional(state.KeySessionID).
			Guarantee(state.KeyAnswer).
			Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			return state.Bag{state.KeyAnswer: "ok"}, nil
		},
	}
	d := newTestDispatcher(defaultSettings())

	bag := state.Bag{
		state.KeyQuestion:   "q",
		state.KeySessionID:  "s1",
		state.KeyConfidence: 0.9,
	}
	if err := d.Dispatch(context.Background(), n, bag); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n.seen.Has(state.KeyConfidence) {
		t.Fatalf("undeclared input leaked: %v", n.seen)
	}
	if !n.seen.Has(state.KeyQuestion) || !n.seen.Has(state.KeySessionID) {
		t.Fatalf("declared inputs missing: %v", n.seen)
	}
	if bag.String(state.KeyAnswer) != "ok" {
		t.Fatalf("output not merged: %v", bag)
	}
}

func TestDispatchStrictMissingRequiredInput(t *testing.T) {
	n := &stubNode{
		name:     "probe",
		contract: NewContract().Require(state.KeyQuestion).Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			t.Fatalf("node should not run")
			return nil, nil
		},
	}
	settings := defaultSettings()
	settings.StrictRequiredInputs = true
	d := newTestDispatcher(settings)

	err := d.Dispatch(context.Background(), n, state.Bag{})
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingInputError, got %v", err)
	}
	if missing.Field != state.KeyQuestion {
		t.Fatalf("field: got=%q", missing.Field)
	}
}

func TestDispatchNilRequiredCountsAsMissing(t *testing.T) {
	n := &stubNode{
		name:     "probe",
		contract: NewContract().Require(state.KeyQuestion).Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			t.Fatalf("node should not run")
			return nil, nil
		},
	}
	settings := defaultSettings()
	settings.StrictMode = true
	d := newTestDispatcher(settings)

	err := d.Dispatch(context.Background(), n, state.Bag{state.KeyQuestion: nil})
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingInputError, got %v", err)
	}
}

func TestDispatchStripsUndeclaredOutputs(t *testing.T) {
	n := &stubNode{
		name: "probe",
		contract: NewContract().
			Require(state.KeyQuestion).
			Guarantee(state.KeyAnswer).
			Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			return state.Bag{
				state.KeyAnswer:     "ok",
				state.KeyConfidence: 0.5,
			}, nil
		},
	}
	d := newTestDispatcher(defaultSettings())

	bag := state.Bag{state.KeyQuestion: "q"}
	if err := d.Dispatch(context.Background(), n, bag); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if bag.Has(state.KeyConfidence) {
		t.Fatalf("undeclared output survived: %v", bag)
	}
	if bag.String(state.KeyAnswer) != "ok" {
		t.Fatalf("declared output lost: %v", bag)
	}
}

func TestDispatchMissingGuaranteedNotFabricated(t *testing.T) {
	n := &stubNode{
		name: "probe",
		contract: NewContract().
			Require(state.KeyQuestion).
			Guarantee(state.KeyAnswer, state.KeyConfidence).
			Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			return state.Bag{state.KeyAnswer: "ok"}, nil
		},
	}
	d := newTestDispatcher(defaultSettings())

	bag := state.Bag{state.KeyQuestion: "q"}
	if err := d.Dispatch(context.Background(), n, bag); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if bag.Has(state.KeyConfidence) {
		t.Fatalf("guaranteed field fabricated: %v", bag)
	}
}

func TestDispatchValidationDisabledIsPassThrough(t *testing.T) {
	n := &stubNode{
		name:     "probe",
		contract: NewContract().Require(state.KeyQuestion).Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			return state.Bag{"anything": 1}, nil
		},
	}
	d := newTestDispatcher(Settings{ValidationEnabled: false})

	bag := state.Bag{state.KeyConfidence: 0.1}
	if err := d.Dispatch(context.Background(), n, bag); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !n.seen.Has(state.KeyConfidence) {
		t.Fatalf("pass-through should hand the full bag to the node")
	}
	if bag.Int("anything") != 1 {
		t.Fatalf("pass-through should merge unvalidated output")
	}
}

func TestDispatchNodeErrorPropagates(t *testing.T) {
	wantErr := errors.New("backend down")
	n := &stubNode{
		name:     "probe",
		contract: NewContract().Build(),
		run: func(ctx context.Context, in state.Bag) (state.Bag, error) {
			return nil, wantErr
		},
	}
	d := newTestDispatcher(defaultSettings())
	if err := d.Dispatch(context.Background(), n, state.Bag{}); !errors.Is(err, wantErr) {
		t.Fatalf("want propagated error, got %v", err)
	}
}
