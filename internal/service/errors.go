package service

import (
	"errors"
	"fmt"
	"strings"

	"popsim/internal/repository"
)

var (
	// ErrNoClusters is returned when a run has no cluster to draw a panel from
	ErrNoClusters = errors.New("no clusters selected")
	// ErrNoAgents is returned when the selected clusters hold no agents
	ErrNoAgents = errors.New("selected clusters have no agents")
)

// IncompleteRunError fails a run in which some agents never produced a valid
// answer. Missing names those agents; Causes holds one error per agent.
type IncompleteRunError struct {
	Missing []string
	Causes  []error
}

func (e *IncompleteRunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d agent(s) failed: %s", len(e.Missing), strings.Join(e.Missing, ", "))
	for _, c := range e.Causes {
		b.WriteString("; ")
		b.WriteString(c.Error())
	}
	return b.String()
}

func (e *IncompleteRunError) Unwrap() []error {
	return e.Causes
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
}
