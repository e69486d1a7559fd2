package repomap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/codeglide/sidecar/pkg/types"
)

// DefaultTokenBudget is the render budget used as the
// default (5,000 tokens).
const DefaultTokenBudget = 5000

// approxEncoding is an approximating tokenizer:
// cl100k_base is close enough across providers for budgeting purposes
// and is the encoding pkoukk/tiktoken-go ships out of the box.
const approxEncoding = "cl100k_base"

// RankedFile pairs a file with its PageRank score, used to order the
// rendered outline.
type RankedFile struct {
	FSPath string
	Rank   float64
}

// GetRankedTags returns files ordered by descending PageRank score: a
// file referenced by others ranks above a file that references others,
// which in turn ranks above a file nobody touches. The last two have
// equal PageRank (neither has incoming edges), so equal scores are
// ordered by outgoing reference weight, highest first.
func GetRankedTags(idx *types.TagIndex) []RankedFile {
	g := buildGraph(idx)
	ranks := g.pageRank()

	out := make([]RankedFile, len(g.files))
	outWeight := make(map[string]float64, len(g.files))
	for i, f := range g.files {
		out[i] = RankedFile{FSPath: f, Rank: ranks[i]}
		outWeight[f] = g.outSum[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return outWeight[out[i].FSPath] > outWeight[out[j].FSPath]
	})
	return out
}

// tokenCounter counts tokens the same way across calls; falls back to
// a word-count heuristic if the encoder can't be constructed (e.g. the
// vocabulary file is unavailable offline).
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	enc, err := tiktoken.GetEncoding(approxEncoding)
	if err != nil {
		return &tokenCounter{enc: nil}
	}
	return &tokenCounter{enc: enc}
}

func (c *tokenCounter) count(s string) int {
	if c.enc != nil {
		return len(c.enc.Encode(s, nil, nil))
	}
	// Fallback heuristic: ~4 characters per token, matching the rule
	// of thumb the context-budgeting code elsewhere already uses
	// elsewhere (internal/session/compact.go).
	return (len(s) + 3) / 4
}

// Render produces a textual outline of idx's top-ranked definitions,
// truncated to budget tokens (the "repo-map budget"
// property: render's output is a prefix-stable function of the ranked
// definition list — definitions are emitted in rank order and cut off
// exactly at the budget boundary, never reordered by truncation).
func Render(idx *types.TagIndex, budget int) string {
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	counter := newTokenCounter()
	ranked := GetRankedTags(idx)

	var sb strings.Builder
	used := 0

	for _, rf := range ranked {
		defs := idx.DefinitionsIn(rf.FSPath)
		if len(defs) == 0 {
			continue
		}
		sort.Slice(defs, func(i, j int) bool { return defs[i].Line < defs[j].Line })

		header := fmt.Sprintf("%s:\n", rf.FSPath)
		headerTokens := counter.count(header)
		if used+headerTokens > budget {
			return sb.String()
		}

		var fileBlock strings.Builder
		fileBlock.WriteString(header)
		fileTokens := headerTokens

		wroteAny := false
		for _, tag := range defs {
			line := fmt.Sprintf("  %d: %s\n", tag.Line, tag.Name)
			lineTokens := counter.count(line)
			if used+fileTokens+lineTokens > budget {
				break
			}
			fileBlock.WriteString(line)
			fileTokens += lineTokens
			wroteAny = true
		}

		if !wroteAny {
			return sb.String()
		}

		sb.WriteString(fileBlock.String())
		used += fileTokens
	}

	return sb.String()
}
