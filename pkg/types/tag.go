package types

// TagKind distinguishes a symbol definition from a reference to one.
type TagKind string

const (
	TagDefinition TagKind = "definition"
	TagReference  TagKind = "reference"
)

// Tag is a single symbol occurrence emitted by the repo map's parser:
// either a definition site or a reference site.
type Tag struct {
	FSPath string  `json:"fsPath"`
	Name   string  `json:"name"`
	Kind   TagKind `json:"kind"`
	Line   int     `json:"line"`
}

// TagIndex is the repo map's in-memory symbol table: definitions keyed
// by (fsPath, name), a reverse name->files index for references, and a
// file-level adjacency used to build the PageRank graph.
type TagIndex struct {
	// Definitions maps fsPath -> name -> defining tags in that file.
	Definitions map[string]map[string][]Tag `json:"definitions"`
	// References maps a referenced name -> the files that reference it.
	References map[string][]string `json:"references"`
	// Files is the set of files indexed, in stable order.
	Files []string `json:"files"`
}

// NewTagIndex creates an empty TagIndex ready for incremental builds.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		Definitions: make(map[string]map[string][]Tag),
		References:  make(map[string][]string),
	}
}

// AddDefinition records a definition tag for fsPath.
func (idx *TagIndex) AddDefinition(fsPath string, tag Tag) {
	if idx.Definitions[fsPath] == nil {
		idx.Definitions[fsPath] = make(map[string][]Tag)
	}
	idx.Definitions[fsPath][tag.Name] = append(idx.Definitions[fsPath][tag.Name], tag)
}

// AddReference records that fsPath references name.
func (idx *TagIndex) AddReference(fsPath, name string) {
	for _, f := range idx.References[name] {
		if f == fsPath {
			return
		}
	}
	idx.References[name] = append(idx.References[name], fsPath)
}

// AddFile registers fsPath as an indexed file if not already present.
func (idx *TagIndex) AddFile(fsPath string) {
	for _, f := range idx.Files {
		if f == fsPath {
			return
		}
	}
	idx.Files = append(idx.Files, fsPath)
}

// DefinitionsIn returns every definition tag recorded for fsPath.
func (idx *TagIndex) DefinitionsIn(fsPath string) []Tag {
	var out []Tag
	for _, tags := range idx.Definitions[fsPath] {
		out = append(out, tags...)
	}
	return out
}
