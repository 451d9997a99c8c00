package object

import "fmt"

// Hash is a 40-character lowercase hex-encoded SHA-1 digest.
type Hash string

// HashHexLen is the length of a hex-encoded Hash.
const HashHexLen = 40

// Short returns the first 8 characters of h for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// Kind identifies the kind of object stored. The set is closed.
type Kind uint8

const (
	KindBlob Kind = iota + 1
	KindTree
	KindCommit
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindCommit:
		return "commit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind decodes the header tag of a stored record.
func ParseKind(tag string) (Kind, error) {
	switch tag {
	case "blob":
		return KindBlob, nil
	case "tree":
		return KindTree, nil
	case "commit":
		return KindCommit, nil
	default:
		return 0, fmt.Errorf("%w: unknown object kind %q", ErrCorruptObject, tag)
	}
}

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
)

// Object is one of *Blob, *Tree or *Commit.
type Object interface {
	Kind() Kind
	sealed()
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Mode string
	Kind Kind // KindBlob or KindTree
	Name string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Kind == KindTree }

// Tree holds one directory level. Entries are kept sorted by Name.
type Tree struct {
	Entries []TreeEntry
}

// Find returns the entry with the given name.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Commit points to a tree snapshot with history metadata.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Signature string
	Message   string
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool { return len(c.Parents) > 1 }

func (*Blob) Kind() Kind   { return KindBlob }
func (*Tree) Kind() Kind   { return KindTree }
func (*Commit) Kind() Kind { return KindCommit }

func (*Blob) sealed()   {}
func (*Tree) sealed()   {}
func (*Commit) sealed() {}
