package types

import (
	"fmt"
	"strings"
)

// DiffFileContent is the full content of one file included alongside
// recent-change hunks, so the model can ground an edit against the
// file as it currently stands.
type DiffFileContent struct {
	FSPath  string `json:"fsPath"`
	Content string `json:"content"`
}

// DiffRecentChanges splits recently edited content into a hot L1 set
// (the file(s) currently being edited) and a cacheable L2 set (older
// edits). The two are serialized into separate user messages so
// providers that support prompt caching can mark the L2 message as a
// cache point and reuse it across turns in the same session.
type DiffRecentChanges struct {
	L1Changes     string            `json:"l1Changes"`
	L2Changes     string            `json:"l2Changes"`
	FileContents  []DiffFileContent `json:"fileContents"`
}

// Empty reports whether there is nothing to splice into the prompt.
func (d *DiffRecentChanges) Empty() bool {
	return d == nil || (d.L1Changes == "" && d.L2Changes == "" && len(d.FileContents) == 0)
}

// ToMessages serializes the changes into the two user-message bodies
// spliced into the prompt: the older, cacheable L2 block first (the
// caller marks that message as a cache point), then the hot L1 block
// with the full contents of the files currently being edited.
func (d *DiffRecentChanges) ToMessages() (l2, l1 string) {
	if d == nil {
		return "", ""
	}
	if d.L2Changes != "" {
		l2 = "Older edits in this workspace:\n\n" + d.L2Changes
	}
	var b strings.Builder
	if d.L1Changes != "" {
		b.WriteString("Edits currently in progress:\n\n")
		b.WriteString(d.L1Changes)
	}
	for _, f := range d.FileContents {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Current content of %s:\n```\n%s\n```", f.FSPath, f.Content)
	}
	return l2, b.String()
}
