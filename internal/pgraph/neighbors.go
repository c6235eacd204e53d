package pgraph

import (
	"sort"

	"github.com/xDarkicex/proxigraph/internal/tls"
)

// selectNeighbors applies the diversified-neighbor heuristic: sort
// candidates by distance to the new point ascending, then keep x only if
// no already-kept y is at least as close to x as the new point is.
// Discarding x in that case means a path through y already reaches x about
// as well as a direct edge would, so the direct edge would just be a
// redundant chord.
func (g *Graph) selectNeighbors(candidates []tls.Candidate, m int) []tls.Candidate {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Dist < candidates[j].Dist })

	kept := make([]tls.Candidate, 0, m)
	for _, x := range candidates {
		if len(kept) >= m {
			break
		}
		xVec := g.vectorAt(x.ID)
		discard := false
		for _, y := range kept {
			yVec := g.vectorAt(y.ID)
			if g.distance(xVec, yVec) <= x.Dist {
				discard = true
				break
			}
		}
		if !discard {
			kept = append(kept, x)
		}
	}
	return kept
}
