package repomap

import (
	"github.com/codeglide/sidecar/pkg/types"
)

// damping is the PageRank damping factor, 0.85.
const damping = 0.85

const maxIterations = 100
const convergenceEpsilon = 1e-6

// fileGraph is a directed, weighted graph over files: an edge A->B
// weighted by the number of references in A to definitions in B.
type fileGraph struct {
	files   []string
	index   map[string]int
	// out[i][j] = weight of edge files[i] -> files[j]
	out     map[int]map[int]float64
	outSum  map[int]float64
}

func buildGraph(idx *types.TagIndex) *fileGraph {
	g := &fileGraph{
		index:  make(map[string]int),
		out:    make(map[int]map[int]float64),
		outSum: make(map[int]float64),
	}
	for _, f := range idx.Files {
		g.index[f] = len(g.files)
		g.files = append(g.files, f)
	}

	// definerOf[name] -> file that defines it (when several files define
	// a name, whichever the map iteration reaches first wins; a
	// name defined in multiple files splits no weight, which matches
	// the simplifying assumption that re-declared names are rare
	// enough not to matter for ranking).
	definerOf := make(map[string]string)
	for fsPath, names := range idx.Definitions {
		for name := range names {
			if _, exists := definerOf[name]; !exists {
				definerOf[name] = fsPath
			}
		}
	}

	for name, referencingFiles := range idx.References {
		definer, ok := definerOf[name]
		if !ok {
			continue
		}
		definerIdx, ok := g.index[definer]
		if !ok {
			continue
		}
		for _, refFile := range referencingFiles {
			if refFile == definer {
				continue // self-references don't contribute rank
			}
			refIdx, ok := g.index[refFile]
			if !ok {
				continue
			}
			if g.out[refIdx] == nil {
				g.out[refIdx] = make(map[int]float64)
			}
			g.out[refIdx][definerIdx]++
			g.outSum[refIdx]++
		}
	}

	return g
}

// pageRank runs weighted PageRank to convergence (or maxIterations),
// returning a rank per file index.
func (g *fileGraph) pageRank() []float64 {
	n := len(g.files)
	if n == 0 {
		return nil
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	// in[j] = list of (i, weight) edges pointing into j
	type edge struct {
		from   int
		weight float64
	}
	in := make([][]edge, n)
	for i, targets := range g.out {
		total := g.outSum[i]
		if total == 0 {
			continue
		}
		for j, w := range targets {
			in[j] = append(in[j], edge{from: i, weight: w / total})
		}
	}

	// Dangling nodes (no outgoing edges) distribute their rank evenly,
	// the standard PageRank fixup.
	danglingMass := func(r []float64) float64 {
		var sum float64
		for i := 0; i < n; i++ {
			if g.outSum[i] == 0 {
				sum += r[i]
			}
		}
		return sum
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make([]float64, n)
		base := (1 - damping) / float64(n)
		dangling := damping * danglingMass(rank) / float64(n)

		for j := 0; j < n; j++ {
			next[j] = base + dangling
			for _, e := range in[j] {
				next[j] += damping * rank[e.from] * e.weight
			}
		}

		var delta float64
		for i := range rank {
			d := next[i] - rank[i]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < convergenceEpsilon {
			break
		}
	}

	return rank
}
