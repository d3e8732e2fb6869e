package main

// productIter walks every Sequence over n card ids in lexicographic order,
// rightmost position fastest. It holds only the current tuple.
type productIter struct {
	n    int
	cur  Sequence
	done bool
	init bool
}

func newProductIter(n int) *productIter {
	return &productIter{n: n, done: n <= 0}
}

// Next returns the next tuple, or false once the product is exhausted.
func (it *productIter) Next() (Sequence, bool) {
	if it.done {
		return Sequence{}, false
	}
	if !it.init {
		it.init = true
		return it.cur, true
	}
	for pos := SeqLen - 1; pos >= 0; pos-- {
		it.cur[pos]++
		if it.cur[pos] < it.n {
			return it.cur, true
		}
		it.cur[pos] = 0
	}
	it.done = true
	return Sequence{}, false
}

// BruteForce enumerates sequences in lexicographic order and collects valid
// ones until p.MaxResults are found, p.TimeLimit elapses, or the product is
// exhausted. The clock is polled once per candidate. Results are returned
// score-descending; ties keep enumeration order. A non-positive TimeLimit
// gets the default limit; the search is never unbounded.
func (o *Optimizer) BruteForce(p BruteParams) []Solution {
	if p.MaxResults <= 0 || o.catalog.Len() == 0 {
		o.log.Info("brute force skipped", "cards", o.catalog.Len(), "max_results", p.MaxResults)
		return nil
	}

	limit := p.TimeLimit
	if limit <= 0 {
		limit = DefaultConfig().Brute.TimeLimit
	}
	start := o.now()
	it := newProductIter(o.catalog.Len())
	var out []Solution

	for {
		if o.now().Sub(start) > limit {
			o.log.Info("brute force time limit reached", "limit", limit, "found", len(out))
			break
		}
		seq, ok := it.Next()
		if !ok {
			break
		}
		ev := o.evaluate(seq, false)
		if !ev.Valid {
			continue
		}
		out = append(out, toSolution(seq, ev))
		if len(out)%100 == 0 {
			o.log.Debug("brute force progress", "found", len(out))
		}
		if len(out) >= p.MaxResults {
			break
		}
	}

	sortByScore(out)
	o.log.Info("brute force done", "found", len(out), "evaluated", o.evals)
	return out
}
