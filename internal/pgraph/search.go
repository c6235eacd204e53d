package pgraph

import (
	"sort"

	"github.com/xDarkicex/proxigraph/internal/tls"
)

// searchLayer is the best-first beam expansion over one layer: maintain
// candidate beam C (nearest-unexpanded-first) and result beam W
// (worst-of-the-ef-best on top), expanding C until no unexpanded candidate
// can possibly improve W.
func (g *Graph) searchLayer(q []byte, entry uint32, ef int, level int, sc *tls.Scratch) []tls.Candidate {
	sc.BeginSearch()

	d0 := g.distance(q, g.vectorAt(entry))
	sc.Visit(entry)
	seed := tls.Candidate{ID: entry, Dist: d0}
	sc.Candidates.Push(seed)
	sc.Results.Push(seed)

	for sc.Candidates.Len() > 0 {
		c := sc.Candidates.Pop()
		if sc.Results.Len() >= ef && c.Dist > sc.Results.Peek().Dist {
			break
		}

		node := g.ns.Get(c.ID)
		if node == nil || level > int(node.TopLayer) {
			continue
		}
		sc.NeighborBuf = node.Snapshot(level, sc.NeighborBuf)

		for _, nbID := range sc.NeighborBuf {
			if sc.Visit(nbID) {
				continue
			}
			nbNode := g.ns.Get(nbID)
			if nbNode == nil {
				continue
			}
			d := g.distance(q, g.vectorAt(nbID))
			if sc.Results.Len() < ef || d < sc.Results.Peek().Dist {
				cand := tls.Candidate{ID: nbID, Dist: d}
				sc.Candidates.Push(cand)
				sc.Results.Push(cand)
				if sc.Results.Len() > ef {
					sc.Results.Pop()
				}
			}
		}
	}

	return sc.Results.Sorted()
}

// Search runs the public query algorithm: greedy single-best descent from
// the top layer down to layer 1, then a bounded beam at layer 0, returning
// the k nearest by distance ascending, ties broken by the lower internal
// id so results are deterministic across repeated identical queries.
func (g *Graph) Search(workerID int, q []byte, k int) ([]tls.Candidate, error) {
	entry, ok := g.ns.EntryID()
	if !ok {
		return nil, nil
	}

	sc := g.tp.Get(workerID)
	maxLevel := g.ns.MaxLevel()

	cur := entry
	for level := maxLevel; level > 0; level-- {
		res := g.searchLayer(q, cur, 1, level, sc)
		if len(res) > 0 {
			cur = res[0].ID
		}
	}

	ef := g.cfg.EfSearch
	if k > ef {
		ef = k
	}
	res := g.searchLayer(q, cur, ef, 0, sc)

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Dist != res[j].Dist {
			return res[i].Dist < res[j].Dist
		}
		return res[i].ID < res[j].ID
	})

	if k < len(res) {
		res = res[:k]
	}
	return res, nil
}
