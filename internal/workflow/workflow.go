// Package workflow is a minimal runner for the short, acyclic decision
// pipelines features use internally: a handful of named steps folding a
// shared state from a start marker to an end marker, strictly sequential,
// with nothing retained between invocations.
package workflow

import (
	"context"
	"fmt"

	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// Reducer merges a new channel value with the existing one. Channels without
// an explicit reducer replace the previous value.
type Reducer func(existing, incoming interface{}) interface{}

// Replace overwrites the previous value.
func Replace(_, incoming interface{}) interface{} {
	return incoming
}

// ConcatStrings joins string writes with a space, so multiple steps can each
// contribute a sentence to the same channel.
func ConcatStrings(existing, incoming interface{}) interface{} {
	next, ok := incoming.(string)
	if !ok {
		return existing
	}
	previous, ok := existing.(string)
	if !ok || previous == "" {
		return next
	}
	if next == "" {
		return previous
	}
	return previous + " " + next
}

// AppendStrings accumulates string-slice writes instead of overwriting them.
func AppendStrings(existing, incoming interface{}) interface{} {
	next, ok := incoming.([]string)
	if !ok {
		return existing
	}
	previous, _ := existing.([]string)
	merged := make([]string, 0, len(previous)+len(next))
	merged = append(merged, previous...)
	merged = append(merged, next...)
	return merged
}

// State is the ephemeral per-invocation channel map. Every write produces a
// new State value; steps never mutate the state they were handed.
type State struct {
	reducers map[string]Reducer
	values   map[string]interface{}
}

func newState(reducers map[string]Reducer) State {
	return State{reducers: reducers, values: map[string]interface{}{}}
}

// With returns a copy of the state with the value merged into the channel
// through its reducer.
func (s State) With(channel string, value interface{}) State {
	next := State{reducers: s.reducers, values: make(map[string]interface{}, len(s.values)+1)}
	for key, existing := range s.values {
		next.values[key] = existing
	}
	if reducer, ok := s.reducers[channel]; ok {
		next.values[channel] = reducer(s.values[channel], value)
	} else {
		next.values[channel] = value
	}
	return next
}

// Get returns the raw channel value.
func (s State) Get(channel string) (interface{}, bool) {
	value, ok := s.values[channel]
	return value, ok
}

// String returns the channel value as a string, or "" when unset.
func (s State) String(channel string) string {
	value, _ := s.values[channel].(string)
	return value
}

// Bool returns the channel value as a bool, or false when unset.
func (s State) Bool(channel string) bool {
	value, _ := s.values[channel].(bool)
	return value
}

// Strings returns the channel value as a string slice.
func (s State) Strings(channel string) []string {
	value, _ := s.values[channel].([]string)
	return value
}

// NodeFunc is one step of a graph. Returning the input state unchanged means
// "no contribution". Returning an error never aborts the graph; the executor
// logs it and keeps the previous state.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Node is a named step.
type Node struct {
	Name string
	Run  NodeFunc
}

// Graph is an immutable pipeline descriptor, built once per feature type and
// executed once per invocation.
type Graph struct {
	name     string
	reducers map[string]Reducer
	nodes    []Node
}

// NewGraph declares a graph with its state channels. Channels not listed use
// Replace semantics.
func NewGraph(name string, reducers map[string]Reducer) *Graph {
	if reducers == nil {
		reducers = map[string]Reducer{}
	}
	return &Graph{name: name, reducers: reducers}
}

// AddNode appends a step to the execution order.
func (g *Graph) AddNode(name string, run NodeFunc) *Graph {
	g.nodes = append(g.nodes, Node{Name: name, Run: run})
	return g
}

// Run folds a fresh state through every node in declaration order. A node
// error is logged and the state from before that node is kept; execution
// continues, because a missed decision is preferable to a stuck pipeline.
func (g *Graph) Run(ctx context.Context, logger logging.Logger) (State, error) {
	state := newState(g.reducers)
	for _, node := range g.nodes {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("workflow %s cancelled: %w", g.name, err)
		}
		next, err := node.Run(ctx, state)
		if err != nil {
			logger.WithError(err).WithFields(logging.Fields{
				"workflow": g.name,
				"node":     node.Name,
			}).Warn("Workflow node failed, continuing with previous state")
			continue
		}
		state = next
	}
	return state, nil
}
