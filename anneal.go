package main

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

const (
	// Temperature never drops below minTemp; the period-100 step also
	// clamps at periodMinTemp.
	minTemp       = 0.01
	periodMinTemp = 0.1
	coolPeriod    = 100

	lowCardBias     = 0.7
	restartFromBest = 0.3
)

// annealState is one run's current and best-so-far position.
type annealState struct {
	cur      Sequence
	curEv    Evaluation
	curValid bool

	best   Sequence
	bestEv Evaluation
}

// Anneal performs p.Runs independent annealing runs and returns the distinct
// run bests, highest score first, truncated to p.MaxSolutions. An empty
// result means no run produced a recordable solution.
func (o *Optimizer) Anneal(rng *rand.Rand, p AnnealParams) []Solution {
	n := o.catalog.Len()
	if n == 0 {
		o.log.Info("anneal skipped", "cards", n)
		return nil
	}

	o.log.Info("anneal start", "initial_temp", p.InitialTemp, "cooling_rate", p.CoolingRate,
		"iterations", p.Iterations, "runs", p.Runs)

	pool := make(map[Sequence]Solution)
	for run := 0; run < p.Runs; run++ {
		sol, ok := o.annealRun(rng, p, run)
		if !ok || sol.Score <= 0 {
			continue
		}
		if _, dup := pool[sol.Sequence]; dup {
			continue
		}
		if p.EnforcePositive && sol.Gain.HasNegative() {
			o.log.Warn("anneal run best has negative gain, ignored", "run", run+1,
				"sequence", sol.Sequence.String(), "score", sol.Score)
			continue
		}
		pool[sol.Sequence] = sol
		o.log.Info("anneal new solution", "run", run+1,
			"sequence", sol.Sequence.String(), "score", sol.Score)
	}

	return o.rankPool(pool, p)
}

// rankPool orders pooled solutions and applies the positive-gain filter,
// falling back to the unfiltered set when nothing passes.
func (o *Optimizer) rankPool(pool map[Sequence]Solution, p AnnealParams) []Solution {
	sols := make([]Solution, 0, len(pool))
	for _, s := range pool {
		sols = append(sols, s)
	}
	sortSolutions(sols)

	if p.EnforcePositive {
		positive := make([]Solution, 0, len(sols))
		for _, s := range sols {
			if !s.Gain.HasNegative() {
				positive = append(positive, s)
			}
		}
		if len(positive) > 0 {
			o.log.Info("anneal positive-gain solutions", "count", len(positive))
			sols = positive
		} else if len(sols) > 0 {
			o.log.Warn("anneal found no positive-gain solution, keeping all")
		}
	}

	if p.MaxSolutions >= 0 && len(sols) > p.MaxSolutions {
		sols = sols[:p.MaxSolutions]
	}
	return sols
}

func (o *Optimizer) annealRun(rng *rand.Rand, p AnnealParams, run int) (Solution, bool) {
	n := o.catalog.Len()
	var st annealState

	st.cur, st.curEv, st.curValid = o.randomValid(rng, p, p.InitAttempts)
	if !st.curValid {
		o.log.Debug("anneal run has no valid start", "run", run+1)
		return Solution{}, false
	}
	st.best, st.bestEv = st.cur, st.curEv

	temp := p.InitialTemp
	stall := 0
	maxStall := max(1, p.Iterations/10)
	low := min(p.LowCardRange, n)
	if low <= 0 {
		low = n
	}

	for i := 0; i < p.Iterations; i++ {
		neighbor := st.cur
		changes := 1 + rng.IntN(2)
		for range changes {
			pos := rng.IntN(SeqLen)
			if rng.Float64() < lowCardBias {
				neighbor[pos] = rng.IntN(low)
			} else {
				neighbor[pos] = rng.IntN(n)
			}
		}

		ev := o.annealEval(neighbor, p)

		if ev.Valid && accept(rng, st, ev, temp) {
			st.cur, st.curEv, st.curValid = neighbor, ev, true
			if ev.Score > st.bestEv.Score {
				st.best, st.bestEv = neighbor, ev
				stall = 0
			} else {
				stall++
			}
		} else {
			stall++
		}

		if i%coolPeriod == 0 {
			temp *= p.CoolingRate
			if temp < periodMinTemp {
				temp = periodMinTemp
			}
		}

		if stall >= maxStall {
			o.log.Debug("anneal restart", "run", run+1, "iteration", i)
			if rng.Float64() < restartFromBest {
				st.cur, st.curEv, st.curValid = st.best, st.bestEv, true
			} else {
				st.cur, st.curEv, st.curValid = o.randomValid(rng, p, p.RestartAttempts)
			}
			temp = p.InitialTemp * 0.5
			stall = 0
		}

		temp *= p.CoolingRate
		if temp < minTemp {
			temp = minTemp
		}
	}

	return toSolution(st.best, st.bestEv), true
}

// accept applies the Metropolis rule. An invalid current position (left by a
// failed restart) accepts any valid neighbor.
func accept(rng *rand.Rand, st annealState, ev Evaluation, temp float64) bool {
	if !st.curValid {
		return true
	}
	delta := float64(ev.Score - st.curEv.Score)
	if delta > 0 {
		return true
	}
	return rng.Float64() < math.Min(1, math.Exp(delta/temp))
}

// annealEval evaluates under the run's policy. With EnforcePositive a
// negative gain component counts as invalid.
func (o *Optimizer) annealEval(seq Sequence, p AnnealParams) Evaluation {
	ev := o.evaluate(seq, p.AllowNegative)
	if ev.Valid && p.EnforcePositive && ev.Gain.HasNegative() {
		ev.Valid = false
	}
	return ev
}

// randomValid draws a random sequence and retries up to attempts more times
// until one passes annealEval. The last draw is returned either way.
func (o *Optimizer) randomValid(rng *rand.Rand, p AnnealParams, attempts int) (Sequence, Evaluation, bool) {
	n := o.catalog.Len()
	seq := randomSequence(rng, n)
	ev := o.annealEval(seq, p)
	for try := 0; !ev.Valid && try < attempts; try++ {
		seq = randomSequence(rng, n)
		ev = o.annealEval(seq, p)
	}
	return seq, ev, ev.Valid
}

// sortSolutions orders by score descending, ties by sequence ascending so
// that results drawn from a map are reproducible.
func sortSolutions(sols []Solution) {
	slices.SortStableFunc(sols, func(a, b Solution) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return a.Sequence.Compare(b.Sequence)
	})
}
