package node

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// Node is one pipeline stage. Run receives the filtered input view and
// returns only the fields it produces; the dispatcher merges them into
// the request bag.
type Node interface {
	Name() string
	Contract() Contract
	Run(ctx context.Context, in state.Bag) (state.Bag, error)
}

// Dispatcher enforces node contracts around each invocation: input
// filtering, strict required checks, span per node, output validation
// and caller-side merge.
type Dispatcher struct {
	log      *logger.Logger
	metrics  *observability.Metrics
	settings Settings
	tracer   trace.Tracer
}

func NewDispatcher(log *logger.Logger, metrics *observability.Metrics, settings Settings) *Dispatcher {
	return &Dispatcher{
		log:      log.With("component", "NodeDispatcher"),
		metrics:  metrics,
		settings: settings,
		tracer:   otel.Tracer("faqbridge/pipeline"),
	}
}

func (d *Dispatcher) Settings() Settings { return d.settings }

// Dispatch runs one node against the request bag and merges its output
// back. With validation disabled the wrapper is a pass-through apart
// from the span.
func (d *Dispatcher) Dispatch(ctx context.Context, n Node, bag state.Bag) error {
	name := n.Name()
	ctx, span := d.tracer.Start(ctx, "node."+name)
	defer span.End()

	start := time.Now()
	defer func() {
		d.metrics.ObserveNode(name, time.Since(start))
	}()

	if !d.settings.ValidationEnabled {
		out, err := n.Run(ctx, bag)
		if err != nil {
			d.recordError(span, name, err)
			return err
		}
		bag.Merge(out)
		return nil
	}

	contract := n.Contract()

	in, err := d.filterInputs(name, contract, bag)
	if err != nil {
		d.recordError(span, name, err)
		return err
	}

	out, err := n.Run(ctx, in)
	if err != nil {
		d.recordError(span, name, err)
		return err
	}

	bag.Merge(d.validateOutputs(name, contract, out))
	span.SetAttributes(attribute.Int("node.output_fields", len(out)))
	return nil
}

func (d *Dispatcher) filterInputs(name string, contract Contract, bag state.Bag) (state.Bag, error) {
	for _, field := range contract.Required() {
		if !bag.Has(field) {
			if d.settings.strictInputs() {
				return nil, &MissingInputError{Node: name, Field: field}
			}
			d.log.Warn("required input missing", "node", name, "field", field)
		}
	}

	if !d.settings.FilterInputs {
		return bag, nil
	}
	in := state.New()
	for key, value := range bag {
		if contract.AcceptsInput(key) {
			in[key] = value
			continue
		}
		if d.settings.LogFiltering {
			d.log.Debug("input filtered", "node", name, "field", key)
		}
	}
	return in, nil
}

// validateOutputs strips undeclared fields and reports absent
// guaranteed fields. Guaranteed fields are never fabricated.
func (d *Dispatcher) validateOutputs(name string, contract Contract, out state.Bag) state.Bag {
	for _, field := range contract.Guaranteed() {
		if _, ok := out[field]; !ok {
			if d.settings.LogViolations {
				d.log.Warn("guaranteed output missing", "node", name, "field", field)
			}
		}
	}

	if !d.settings.FilterOutputs {
		return out
	}
	validated := state.New()
	for key, value := range out {
		if contract.DeclaresOutput(key) {
			validated[key] = value
			continue
		}
		if d.settings.LogViolations {
			d.log.Warn("undeclared output stripped", "node", name, "field", key)
		}
		d.metrics.NodeError(name, "contract_violation")
	}
	return validated
}

func (d *Dispatcher) recordError(span trace.Span, name string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.metrics.NodeError(name, "run_failed")
}
