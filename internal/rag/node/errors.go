package node

import "fmt"

// MissingInputError signals that a required field was absent or nil at
// dispatch while strict input checking is on. Surfaced as a 5xx.
type MissingInputError struct {
	Node  string
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %q: missing required input %q", e.Node, e.Field)
}
