package pgraph

import (
	"fmt"
	"sort"

	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/tls"
)

// Insert adds (label, vec) to the graph, running the full construction
// algorithm: draw a random top layer, allocate the id, greedy descent
// through the layers above it, then at each layer from its own top down
// to 0 search for candidates, select a diversified neighbor subset, link
// bidirectionally, and prune any neighbor whose list overflowed. The rare
// entry-point promotion is folded into nstore.MaybePromoteEntry.
func (g *Graph) Insert(workerID int, label int64, vec []byte, copyBytes bool) (uint32, error) {
	topLayer := g.randomLevel(workerID)

	id, node, err := g.ns.Alloc(label, topLayer)
	if err != nil {
		return 0, fmt.Errorf("pgraph: %w", err)
	}
	if err := g.vs.Add(id, vec, copyBytes); err != nil {
		return 0, fmt.Errorf("pgraph: %w", err)
	}

	if id == 0 {
		// id 0 is always the very first id Alloc ever hands out, regardless
		// of how concurrent inserts interleave afterward, so it's a safe
		// unambiguous "am I the first node" test (unlike comparing Size()).
		g.ns.SetFirstEntry(id, topLayer)
		return id, nil
	}

	entry, ok := g.ns.EntryID()
	if !ok {
		// id 0's inserter hasn't called SetFirstEntry yet; spin briefly.
		for !ok {
			entry, ok = g.ns.EntryID()
		}
	}
	maxLevel := g.ns.MaxLevel()
	cur := entry

	sc := g.tp.Get(workerID)

	for level := maxLevel; level > topLayer; level-- {
		res := g.searchLayer(vec, cur, 1, level, sc)
		if len(res) > 0 {
			cur = res[0].ID
		}
	}

	start := topLayer
	if maxLevel < start {
		start = maxLevel
	}
	for level := start; level >= 0; level-- {
		w := g.searchLayer(vec, cur, g.cfg.EfConstruction, level, sc)
		if len(w) == 0 {
			continue
		}

		capM := g.ns.CapAt(level)
		selected := g.selectNeighbors(w, capM)

		selIDs := make([]uint32, len(selected))
		for i, c := range selected {
			selIDs[i] = c.ID
		}
		node.Replace(level, selIDs)

		sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
		for _, nb := range selected {
			g.linkBack(nb.ID, id, level)
		}

		cur = w[0].ID
	}

	g.ns.MaybePromoteEntry(id, topLayer)
	return id, nil
}

// linkBack adds newID to n's layer-level neighbor list under n's write
// lock. If the list is already at its cap, the current list plus newID are
// re-selected with the diversified-neighbor heuristic, so newID is kept
// only if it survives that pruning.
func (g *Graph) linkBack(n uint32, newID uint32, level int) {
	node := g.ns.Get(n)
	if node == nil || level > int(node.TopLayer) {
		return
	}

	node.Lock()
	defer node.Unlock()

	if node.Contains(level, newID) {
		return
	}
	if !node.Append(level, newID) {
		// Layer already at cap: the append above was a no-op. Pull the
		// current list plus the new id into one candidate set, then
		// re-select so the new edge still gets considered against the
		// existing ones rather than silently dropped.
		g.repruneWithCandidate(node, n, newID, level)
		return
	}
	if node.Degree(level) > node.Cap(level) {
		g.reprune(node, n, level)
	}
}

func (g *Graph) reprune(node *nstore.Node, id uint32, level int) {
	ids := node.Snapshot(level, nil)
	nVec := g.vectorAt(id)
	cands := make([]tls.Candidate, len(ids))
	for i, nb := range ids {
		cands[i] = tls.Candidate{ID: nb, Dist: g.distance(nVec, g.vectorAt(nb))}
	}
	kept := g.selectNeighbors(cands, node.Cap(level))
	if len(kept) == 0 && len(cands) > 0 {
		g.log.Warnf("pgraph: reprune left node %d with zero neighbors at layer %d (had %d candidates)", id, level, len(cands))
	}
	keptIDs := make([]uint32, len(kept))
	for i, c := range kept {
		keptIDs[i] = c.ID
	}
	node.Replace(level, keptIDs)
}

func (g *Graph) repruneWithCandidate(node *nstore.Node, id, newID uint32, level int) {
	ids := node.Snapshot(level, nil)
	nVec := g.vectorAt(id)
	cands := make([]tls.Candidate, 0, len(ids)+1)
	for _, nb := range ids {
		cands = append(cands, tls.Candidate{ID: nb, Dist: g.distance(nVec, g.vectorAt(nb))})
	}
	cands = append(cands, tls.Candidate{ID: newID, Dist: g.distance(nVec, g.vectorAt(newID))})
	kept := g.selectNeighbors(cands, node.Cap(level))
	if len(kept) == 0 {
		g.log.Warnf("pgraph: reprune left node %d with zero neighbors at layer %d (had %d candidates)", id, level, len(cands))
	}
	keptIDs := make([]uint32, len(kept))
	for i, c := range kept {
		keptIDs[i] = c.ID
	}
	node.Replace(level, keptIDs)
}
