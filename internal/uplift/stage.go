// Package uplift implements a staged search over composite uplift
// strategies. Strategies are decomposed into named training stages;
// stages shared between strategies are trained once and the full
// strategies are reassembled from the cached per-stage models.
package uplift

import (
	"strings"

	"autouplift/internal/automl"
	"autouplift/internal/errors"
)

// StageKind identifies one named training step within a strategy
type StageKind string

const (
	StageOutcomeControl   StageKind = "outcome_control"
	StageOutcomeTreatment StageKind = "outcome_treatment"
	StagePropensity       StageKind = "propensity"
	StageEffectControl    StageKind = "effect_control"
	StageEffectTreatment  StageKind = "effect_treatment"
)

// maxChainDepth is the deepest supported prerequisite chain
const maxChainDepth = 2

// Stage describes one training step. A stage with a prerequisite is
// second-level: its training target is derived from the prerequisite's
// trained predictions.
type Stage struct {
	Kind   StageKind
	Task   automl.Task // empty means the search's base task
	Prereq *Stage
}

// TaskFor resolves the stage's training task against the base task
func (s *Stage) TaskFor(base automl.Task) automl.Task {
	if s.Task != "" {
		return s.Task
	}
	return base
}

// Depth returns the length of the stage's prerequisite chain plus one
func (s *Stage) Depth() int {
	if s.Prereq == nil {
		return 1
	}
	return s.Prereq.Depth() + 1
}

// Chain returns the stage's full identity
func (s *Stage) Chain() ChainName {
	var c ChainName
	if s.Prereq != nil {
		c.kinds[0] = s.Prereq.Kind
		c.kinds[1] = s.Kind
		c.depth = 2
	} else {
		c.kinds[0] = s.Kind
		c.depth = 1
	}
	return c
}

// ChainName is the normalized full identity of a stage: the ordered
// chain of (prerequisite, self) kinds. It is comparable and used as
// the cache key. Two stages with different chains are never
// interchangeable even when their leaf kinds collide.
type ChainName struct {
	kinds [maxChainDepth]StageKind
	depth int
}

// Level1Chain builds a depth-1 chain
func Level1Chain(kind StageKind) ChainName {
	return ChainName{kinds: [maxChainDepth]StageKind{kind}, depth: 1}
}

// Level2Chain builds a depth-2 chain
func Level2Chain(prereq, kind StageKind) ChainName {
	return ChainName{kinds: [maxChainDepth]StageKind{prereq, kind}, depth: 2}
}

// Depth returns the chain depth
func (c ChainName) Depth() int {
	return c.depth
}

// Leaf returns the kind of the stage itself
func (c ChainName) Leaf() StageKind {
	if c.depth == 0 {
		return ""
	}
	return c.kinds[c.depth-1]
}

// PrereqChain returns the prerequisite's chain, if any
func (c ChainName) PrereqChain() (ChainName, bool) {
	if c.depth < 2 {
		return ChainName{}, false
	}
	return ChainName{kinds: [maxChainDepth]StageKind{c.kinds[0]}, depth: 1}, true
}

// String renders the chain as prereq/leaf
func (c ChainName) String() string {
	parts := make([]string, 0, c.depth)
	for i := 0; i < c.depth; i++ {
		parts = append(parts, string(c.kinds[i]))
	}
	return strings.Join(parts, "/")
}

// StrategyKind identifies a meta-learner strategy type
type StrategyKind string

const (
	StrategyT StrategyKind = "TLearner"
	StrategyX StrategyKind = "XLearner"
)

// ParseStrategy resolves a strategy name to its kind
func ParseStrategy(name string) (StrategyKind, error) {
	switch StrategyKind(name) {
	case StrategyT, StrategyX:
		return StrategyKind(name), nil
	}
	return "", errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", name)
}

// Stages returns the ordered stage list required by the strategy
func (k StrategyKind) Stages() ([]*Stage, error) {
	switch k {
	case StrategyT:
		return []*Stage{
			{Kind: StageOutcomeControl},
			{Kind: StageOutcomeTreatment},
		}, nil
	case StrategyX:
		return []*Stage{
			{Kind: StageOutcomeControl},
			{Kind: StageOutcomeTreatment},
			{Kind: StagePropensity, Task: automl.TaskBinary},
			{Kind: StageEffectControl, Task: automl.TaskReg, Prereq: &Stage{Kind: StageOutcomeTreatment}},
			{Kind: StageEffectTreatment, Task: automl.TaskReg, Prereq: &Stage{Kind: StageOutcomeControl}},
		}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", k)
	}
}

// allStages returns every distinct stage required by the strategies,
// in a fixed order, keyed by chain
func allStages(strategies []StrategyKind) ([]*Stage, map[ChainName]*Stage, error) {
	var ordered []*Stage
	byChain := make(map[ChainName]*Stage)
	for _, strat := range strategies {
		stages, err := strat.Stages()
		if err != nil {
			return nil, nil, err
		}
		for _, stage := range stages {
			chain := stage.Chain()
			if _, ok := byChain[chain]; ok {
				continue
			}
			byChain[chain] = stage
			ordered = append(ordered, stage)
		}
	}
	return ordered, byChain, nil
}
