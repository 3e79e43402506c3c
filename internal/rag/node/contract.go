package node

import "sort"

// Contract declares the state fields a node consumes and produces.
// Built once at construction time and immutable afterwards.
type Contract struct {
	required    map[string]struct{}
	optional    map[string]struct{}
	guaranteed  map[string]struct{}
	conditional map[string]struct{}
}

type ContractBuilder struct {
	c Contract
}

func NewContract() *ContractBuilder {
	return &ContractBuilder{c: Contract{
		required:    map[string]struct{}{},
		optional:    map[string]struct{}{},
		guaranteed:  map[string]struct{}{},
		conditional: map[string]struct{}{},
	}}
}

func (b *ContractBuilder) Require(fields ...string) *ContractBuilder {
	for _, f := range fields {
		b.c.required[f] = struct{}{}
	}
	return b
}

func (b *ContractBuilder) Optional(fields ...string) *ContractBuilder {
	for _, f := range fields {
		b.c.optional[f] = struct{}{}
	}
	return b
}

func (b *ContractBuilder) Guarantee(fields ...string) *ContractBuilder {
	for _, f := range fields {
		b.c.guaranteed[f] = struct{}{}
	}
	return b
}

func (b *ContractBuilder) Conditional(fields ...string) *ContractBuilder {
	for _, f := range fields {
		b.c.conditional[f] = struct{}{}
	}
	return b
}

func (b *ContractBuilder) Build() Contract { return b.c }

// Required returns the required input fields in sorted order.
func (c Contract) Required() []string {
	out := make([]string, 0, len(c.required))
	for f := range c.required {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Guaranteed returns the guaranteed output fields in sorted order.
func (c Contract) Guaranteed() []string {
	out := make([]string, 0, len(c.guaranteed))
	for f := range c.guaranteed {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AcceptsInput reports whether the field is part of the input contract.
func (c Contract) AcceptsInput(field string) bool {
	if _, ok := c.required[field]; ok {
		return true
	}
	_, ok := c.optional[field]
	return ok
}

// DeclaresOutput reports whether the field is part of the output
// contract.
func (c Contract) DeclaresOutput(field string) bool {
	if _, ok := c.guaranteed[field]; ok {
		return true
	}
	_, ok := c.conditional[field]
	return ok
}
