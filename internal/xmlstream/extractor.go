// Package xmlstream extracts tool calls that providers emit inline in
// assistant text as <tool_name>...</tool_name> rather than through a
// native function-call channel.
//
// The extractor keeps a rolling buffer with a processed-up-to cursor:
// it never re-scans bytes it has already classified, and a tag region
// is yielded exactly once, the instant its closing tag is observed.
package xmlstream

import "strings"

// Extraction is one fully closed tag region yielded from the stream.
type Extraction struct {
	Tag     string
	Content string
}

// Extractor maintains a rolling buffer and a cursor into it, scanning
// forward for known opening tags across arbitrarily chunked input.
type Extractor struct {
	tags              map[string]bool
	buf               strings.Builder
	processedUpTo     int
	pendingOpenTag    string
	pendingOpenStart  int
	haveOpenTag       bool
}

// New creates an extractor that recognises the given tag names.
func New(tags ...string) *Extractor {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return &Extractor{tags: set}
}

// Append feeds the next chunk of stream text into the extractor and
// returns every tag region that became fully closed as a result. Input
// may be split at any byte boundary, including mid-tag; only the set
// of opened+closed regions observed so far is ever yielded, and each
// region is yielded exactly once.
func (e *Extractor) Append(chunk string) []Extraction {
	e.buf.WriteString(chunk)
	full := e.buf.String()

	var out []Extraction
	for {
		if !e.haveOpenTag {
			tag, start, found := e.findNextOpenTag(full)
			if !found {
				break
			}
			e.pendingOpenTag = tag
			e.pendingOpenStart = start
			e.haveOpenTag = true
		}

		closeTag := "</" + e.pendingOpenTag + ">"
		closeIdx := strings.Index(full[e.pendingOpenStart:], closeTag)
		if closeIdx < 0 {
			// Not closed yet; wait for more input.
			break
		}
		closeIdx += e.pendingOpenStart

		content := full[e.pendingOpenStart:closeIdx]
		out = append(out, Extraction{Tag: e.pendingOpenTag, Content: content})

		e.processedUpTo = closeIdx + len(closeTag)
		e.haveOpenTag = false
	}

	return out
}

// findNextOpenTag scans full[e.processedUpTo:] for the earliest known
// opening tag and returns the tag name and the index just past its
// closing '>'.
func (e *Extractor) findNextOpenTag(full string) (tag string, contentStart int, found bool) {
	search := full[e.processedUpTo:]
	bestIdx := -1
	var bestTag string
	var bestContentStart int

	for name := range e.tags {
		open := "<" + name + ">"
		idx := strings.Index(search, open)
		if idx < 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx {
			bestIdx = idx
			bestTag = name
			bestContentStart = e.processedUpTo + idx + len(open)
		}
	}

	if bestIdx == -1 {
		// Advance processedUpTo conservatively: keep the tail that
		// could still be the start of an opening tag ("<" onward).
		if lt := strings.LastIndexByte(search, '<'); lt >= 0 {
			e.processedUpTo += lt
		} else {
			e.processedUpTo = len(full)
		}
		return "", 0, false
	}

	return bestTag, bestContentStart, true
}

// WrapXML renders a single tool call as the XML block format some
// providers expect in the prompt (the inverse of extraction).
func WrapXML(tag string, params map[string]string, order []string) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tag)
	b.WriteString(">\n")
	for _, k := range order {
		v, ok := params[k]
		if !ok {
			continue
		}
		b.WriteString("<")
		b.WriteString(k)
		b.WriteString(">")
		b.WriteString(v)
		b.WriteString("</")
		b.WriteString(k)
		b.WriteString(">\n")
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteString(">")
	return b.String()
}

// ExtractAllTagContents extracts every closed region for a single,
// already-complete string (no streaming involved) — a convenience used
// by tests and by non-streaming call sites such as the batch tool.
func ExtractAllTagContents(input string, tags ...string) []Extraction {
	e := New(tags...)
	return e.Append(input)
}
