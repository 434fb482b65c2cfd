package bpe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// pairTable is a frequency table plus the positions each pair occurs at.
// Positions may go stale as merges proceed; readers revalidate them with
// Store.pairAt.
type pairTable struct {
	freq map[PairKey]int64
	occ  map[PairKey][]int32
}

func newPairTable() *pairTable {
	return &pairTable{
		freq: make(map[PairKey]int64),
		occ:  make(map[PairKey][]int32),
	}
}

// countRange tallies the pairs of words [lo, hi) of a freshly built store.
func (s *Store) countRange(lo, hi int) *pairTable {
	t := newPairTable()
	for _, wd := range s.words[lo:hi] {
		c := int64(wd.count)
		for pos := wd.start; pos+1 < wd.end; pos++ {
			key := PairKey{s.syms[pos].id, s.syms[pos+1].id}
			t.freq[key] += c
			t.occ[key] = append(t.occ[key], pos)
		}
	}

	return t
}

// countPairs builds the initial pair table, sharding the words over workers
// goroutines. Shards are summed in shard order, so the result does not
// depend on the worker count or on scheduling.
func countPairs(ctx context.Context, s *Store, workers int) (*pairTable, error) {
	n := len(s.words)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = max(n, 1)
	}

	if workers == 1 {
		return s.countRange(0, n), nil
	}

	shards := make([]*pairTable, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		lo, hi := w*n/workers, (w+1)*n/workers
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			shards[w] = s.countRange(lo, hi)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := shards[0]
	for _, shard := range shards[1:] {
		for key, f := range shard.freq {
			total.freq[key] += f
			total.occ[key] = append(total.occ[key], shard.occ[key]...)
		}
	}

	return total, nil
}
