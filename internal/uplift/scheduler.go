package uplift

import (
	"math/rand"

	"autouplift/internal/logger"
)

// Scheduler decides the order in which (stage, candidate) pairs are
// submitted for training. First-level stages are explored round-robin
// to establish breadth; once every first-level stage has had a full
// round, second-level stages unlocked by trained prerequisites are
// drained in bursts of uniformly random picks from a pending pool, so
// a scarce budget is not spent exhausting a single branch.
type Scheduler struct {
	level1     []ChainName
	level2     []ChainName
	stages     map[ChainName]*Stage
	candidates map[ChainName][]LearnerWrapper
	burst      int
	rng        *rand.Rand
	log        logger.Logger
}

// level2Entry is one pending branch of second-level work: a stage, the
// prerequisite (stage, candidate) pair that unlocked it, and a lazy
// cursor over the stage's candidate list.
type level2Entry struct {
	stage  *Stage
	prereq StagePair
	queue  []LearnerWrapper
	next   int
}

// NewScheduler creates a scheduler over the given stages. candidates
// maps each stage identity to its candidate list in a fixed,
// reproducible order. rng is the injectable random source used for
// pool draws.
func NewScheduler(stages []*Stage, candidates map[ChainName][]LearnerWrapper, burst int, rng *rand.Rand, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if burst <= 0 {
		burst = 3
	}
	s := &Scheduler{
		stages:     make(map[ChainName]*Stage, len(stages)),
		candidates: candidates,
		burst:      burst,
		rng:        rng,
		log:        log,
	}
	for _, stage := range stages {
		chain := stage.Chain()
		if _, ok := s.stages[chain]; ok {
			continue
		}
		s.stages[chain] = stage
		switch chain.Depth() {
		case 1:
			s.level1 = append(s.level1, chain)
		case 2:
			s.level2 = append(s.level2, chain)
		}
	}
	return s
}

// TotalSubmissions returns the size of the full candidate enumeration.
// A second-level stage is enumerated once per prerequisite candidate.
func (s *Scheduler) TotalSubmissions() int {
	n := 0
	for _, chain := range s.level1 {
		n += len(s.candidates[chain])
	}
	for _, chain := range s.level2 {
		prereqChain, _ := chain.PrereqChain()
		n += len(s.candidates[prereqChain]) * len(s.candidates[chain])
	}
	return n
}

// Run submits work to handle until the enumeration completes or the
// timer budget is exceeded. It returns the number of completed
// submissions and whether the budget stopped the run early.
func (s *Scheduler) Run(handle func(Submission) error, timer *Timer) (int, bool, error) {
	completed := 0
	var pool []*level2Entry

	submit := func(sub Submission) (stop bool, err error) {
		if err := handle(sub); err != nil {
			return true, err
		}
		completed++
		return timer.LimitExceeded(), nil
	}

	maxRounds := 0
	for _, chain := range s.level1 {
		if n := len(s.candidates[chain]); n > maxRounds {
			maxRounds = n
		}
	}

	firstRun := true
	nRuns := 0
	for round := 0; round < maxRounds; round++ {
		for _, chain := range s.level1 {
			cands := s.candidates[chain]
			if round >= len(cands) {
				continue
			}
			stage := s.stages[chain]
			candidate := cands[round].Clone()

			// a freshly trained level-1 pair unlocks every level-2
			// stage whose prerequisite identity matches it
			for _, l2chain := range s.level2 {
				prereqChain, _ := l2chain.PrereqChain()
				if prereqChain == chain {
					pool = append(pool, &level2Entry{
						stage:  s.stages[l2chain],
						prereq: StagePair{Stage: stage, Candidate: candidate},
						queue:  s.candidates[l2chain],
					})
				}
			}

			nRuns++
			stop, err := submit(Submission{{Stage: stage, Candidate: candidate}})
			if err != nil || stop {
				return completed, stop && err == nil, err
			}

			if !firstRun {
				bound := len(pool)
				if bound > s.burst {
					bound = s.burst
				}
				for i := 0; i < bound; i++ {
					if len(pool) == 0 {
						break
					}
					idx := s.rng.Intn(len(pool))
					entry := pool[idx]
					if entry.next >= len(entry.queue) {
						pool = append(pool[:idx], pool[idx+1:]...)
						continue
					}
					l2candidate := entry.queue[entry.next].Clone()
					entry.next++

					nRuns++
					stop, err := submit(Submission{
						entry.prereq,
						{Stage: entry.stage, Candidate: l2candidate},
					})
					if err != nil || stop {
						return completed, stop && err == nil, err
					}
				}
			}

			if nRuns >= len(s.level1) {
				firstRun = false
			}
		}
	}

	// level-1 enumeration is done; drain the remaining level-2 pool
	for len(pool) > 0 {
		idx := s.rng.Intn(len(pool))
		entry := pool[idx]
		if entry.next >= len(entry.queue) {
			pool = append(pool[:idx], pool[idx+1:]...)
			continue
		}
		l2candidate := entry.queue[entry.next].Clone()
		entry.next++

		stop, err := submit(Submission{
			entry.prereq,
			{Stage: entry.stage, Candidate: l2candidate},
		})
		if err != nil || stop {
			return completed, stop && err == nil, err
		}
	}

	return completed, false, nil
}
