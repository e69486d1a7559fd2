package session

import (
	"sort"
	"strings"
	"time"

	"github.com/codeglide/sidecar/internal/editorclient"
	"github.com/codeglide/sidecar/pkg/types"
)

// l1Window is how far back an edit still counts as "currently being
// edited". Everything older lands in the cacheable L2 set, which stays
// byte-stable across turns so providers with prompt caching can reuse
// the serialized message.
const l1Window = 2 * time.Minute

// splitRecentEdits partitions the editor's recent-edit hunks into the
// hot L1 set and the older L2 set, most recent last within each set.
func splitRecentEdits(resp *editorclient.RecentEditsResponse) *types.DiffRecentChanges {
	if resp == nil || len(resp.Edits) == 0 {
		return nil
	}

	edits := make([]struct {
		fsPath string
		diff   string
		atTime int64
	}, len(resp.Edits))
	for i, e := range resp.Edits {
		edits[i].fsPath = e.FSPath
		edits[i].diff = e.Diff
		edits[i].atTime = e.AtTime
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].atTime < edits[j].atTime })

	cutoff := time.Now().Add(-l1Window).UnixMilli()
	var l1, l2 strings.Builder
	for _, e := range edits {
		dst := &l2
		if e.atTime >= cutoff {
			dst = &l1
		}
		if dst.Len() > 0 {
			dst.WriteString("\n")
		}
		dst.WriteString("--- ")
		dst.WriteString(e.fsPath)
		dst.WriteString("\n")
		dst.WriteString(e.diff)
	}

	return &types.DiffRecentChanges{
		L1Changes: l1.String(),
		L2Changes: l2.String(),
	}
}
