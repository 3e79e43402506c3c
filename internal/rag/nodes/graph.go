package nodes

import (
	"github.com/faqbridge/faqbridge-backend/internal/rag/graph"
	"github.com/faqbridge/faqbridge-backend/internal/rag/node"
	"github.com/faqbridge/faqbridge-backend/internal/rag/nodeconfig"
	"github.com/faqbridge/faqbridge-backend/internal/rag/state"
)

// BuildDefaultGraph assembles the request pipeline:
//
//	session_load -> guardrails_input -> clarify_advance -> language ->
//	aggregate -> dialog -> loop_detect -> cache_check -> classify ->
//	retrieve -> clarify_begin -> multihop -> generate -> cache_store ->
//	guardrails_output -> session_save
//
// with early exits for blocked input, active clarification turns,
// escalations and cache hits.
func BuildDefaultGraph(deps Deps, dispatcher *node.Dispatcher, cfg *nodeconfig.Registry) (*graph.Graph, error) {
	all := []node.Node{
		NewSessionLoad(deps),
		NewInputGuard(deps),
		NewClarifyAdvance(deps),
		NewLanguage(deps),
		NewAggregate(deps),
		NewDialog(deps),
		NewLoopDetect(deps),
		NewCacheCheck(deps),
		NewClassify(deps),
		NewRetrieve(deps),
		NewClarifyBegin(deps),
		NewMultiHop(deps),
		NewGenerate(deps),
		NewCacheStore(deps),
		NewOutputGuard(deps),
		NewSessionSave(deps),
	}

	b := graph.NewBuilder(dispatcher, deps.Log)
	for _, n := range all {
		b.Add(n, cfg.For(n.Name()).RunPolicy())
	}

	b.Start("session_load").
		Edge("session_load", "guardrails_input").
		Branch("guardrails_input", func(bag state.Bag) string {
			if bag.Bool(state.KeyGuardrailsBlocked) {
				return "session_save"
			}
			return "clarify_advance"
		}).
		Branch("clarify_advance", func(bag state.Bag) string {
			if bag.Bool(KeyClarificationHandled) {
				return "session_save"
			}
			return "language"
		}).
		Edge("language", "aggregate").
		Edge("aggregate", "dialog").
		Branch("dialog", func(bag state.Bag) string {
			if bag.Has(state.KeyEscalationMessage) {
				return "generate"
			}
			return "loop_detect"
		}).
		Branch("loop_detect", func(bag state.Bag) string {
			if bag.Has(state.KeyEscalationMessage) {
				return "generate"
			}
			return "cache_check"
		}).
		Branch("cache_check", func(bag state.Bag) string {
			if bag.Bool(state.KeyCacheHit) {
				return "guardrails_output"
			}
			return "classify"
		}).
		Edge("classify", "retrieve").
		Edge("retrieve", "clarify_begin").
		Branch("clarify_begin", func(bag state.Bag) string {
			if bag.Bool(KeyClarificationHandled) {
				return "guardrails_output"
			}
			return "multihop"
		}).
		Edge("multihop", "generate").
		Edge("generate", "cache_store").
		Edge("cache_store", "guardrails_output").
		Edge("guardrails_output", "session_save").
		Edge("session_save", graph.End)

	return b.Build()
}
