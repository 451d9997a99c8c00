package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Encode serializes any object to its canonical payload.
func Encode(obj Object) (Kind, []byte, error) {
	switch o := obj.(type) {
	case *Blob:
		return KindBlob, MarshalBlob(o), nil
	case *Tree:
		data, err := MarshalTree(o)
		if err != nil {
			return 0, nil, err
		}
		return KindTree, data, nil
	case *Commit:
		data, err := MarshalCommit(o)
		if err != nil {
			return 0, nil, err
		}
		return KindCommit, data, nil
	default:
		return 0, nil, fmt.Errorf("encode: unsupported object %T", obj)
	}
}

// Decode parses a canonical payload of the given kind.
func Decode(kind Kind, data []byte) (Object, error) {
	switch kind {
	case KindBlob:
		return UnmarshalBlob(data), nil
	case KindTree:
		return UnmarshalTree(data)
	case KindCommit:
		return UnmarshalCommit(data)
	default:
		return nil, fmt.Errorf("%w: unknown object kind %d", ErrCorruptObject, kind)
	}
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) *Blob {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	<mode> <kind> <hash>\t<name>
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for i, e := range sorted {
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		if err := validateTreeEntry(e); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		fmt.Fprintf(&buf, "%s %s %s\t%s\n", e.Mode, e.Kind, e.Hash, e.Name)
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a Tree and rejects any non-canonical encoding.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	if len(data) == 0 {
		return tr, nil
	}
	if data[len(data)-1] != '\n' {
		return nil, fmt.Errorf("%w: tree: missing trailing newline", ErrCorruptObject)
	}
	for _, line := range strings.Split(string(data[:len(data)-1]), "\n") {
		meta, name, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: tree: malformed entry %q", ErrCorruptObject, line)
		}
		parts := strings.Split(meta, " ")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: tree: malformed entry %q", ErrCorruptObject, line)
		}
		kind, err := ParseKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("tree entry %q: %w", name, err)
		}
		e := TreeEntry{Mode: parts[0], Kind: kind, Name: name, Hash: Hash(parts[2])}
		if err := validateTreeEntry(e); err != nil {
			return nil, fmt.Errorf("%w: tree: %v", ErrCorruptObject, err)
		}
		if n := len(tr.Entries); n > 0 && tr.Entries[n-1].Name >= name {
			return nil, fmt.Errorf("%w: tree: entries not sorted at %q", ErrCorruptObject, name)
		}
		tr.Entries = append(tr.Entries, e)
	}
	return tr, nil
}

func validateTreeEntry(e TreeEntry) error {
	if err := ValidateEntryName(e.Name); err != nil {
		return err
	}
	switch e.Mode {
	case ModeDir:
		if e.Kind != KindTree {
			return fmt.Errorf("entry %q: mode %s requires kind tree", e.Name, e.Mode)
		}
	case ModeFile, ModeExecutable:
		if e.Kind != KindBlob {
			return fmt.Errorf("entry %q: mode %s requires kind blob", e.Name, e.Mode)
		}
	default:
		return fmt.Errorf("entry %q: unknown mode %q", e.Name, e.Mode)
	}
	if !IsHash(string(e.Hash)) {
		return fmt.Errorf("entry %q: invalid hash %q", e.Name, e.Hash)
	}
	return nil
}

// ValidateEntryName checks a single path component of a tree.
func ValidateEntryName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\x00\n"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	timestamp T
//	signature S  (optional)
//
//	message
func MarshalCommit(c *Commit) ([]byte, error) {
	if !IsHash(string(c.Tree)) {
		return nil, fmt.Errorf("marshal commit: invalid tree hash %q", c.Tree)
	}
	if strings.ContainsAny(c.Author, "\n") || strings.ContainsAny(c.Signature, "\n") {
		return nil, fmt.Errorf("marshal commit: header values must be single-line")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		if !IsHash(string(p)) {
			return nil, fmt.Errorf("marshal commit: invalid parent hash %q", p)
		}
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	if c.Signature != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

// commit header keys in canonical order
var commitKeyOrder = map[string]int{
	"tree":      0,
	"parent":    1,
	"author":    2,
	"timestamp": 3,
	"signature": 4,
}

// UnmarshalCommit parses a Commit from its canonical form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: commit: missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	c := &Commit{Message: string(data[idx+2:])}

	last := -1
	seen := make(map[string]bool)
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: commit: malformed header line %q", ErrCorruptObject, line)
		}
		order, known := commitKeyOrder[key]
		if !known {
			return nil, fmt.Errorf("%w: commit: unknown header key %q", ErrCorruptObject, key)
		}
		if order < last || (key != "parent" && seen[key]) {
			return nil, fmt.Errorf("%w: commit: header %q out of order", ErrCorruptObject, key)
		}
		last = order
		seen[key] = true

		switch key {
		case "tree":
			if !IsHash(val) {
				return nil, fmt.Errorf("%w: commit: bad tree hash %q", ErrCorruptObject, val)
			}
			c.Tree = Hash(val)
		case "parent":
			if !IsHash(val) {
				return nil, fmt.Errorf("%w: commit: bad parent hash %q", ErrCorruptObject, val)
			}
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: commit: bad timestamp %q", ErrCorruptObject, val)
			}
			c.Timestamp = ts
		case "signature":
			c.Signature = val
		}
	}
	if !seen["tree"] || !seen["author"] || !seen["timestamp"] {
		return nil, fmt.Errorf("%w: commit: missing required header", ErrCorruptObject)
	}
	return c, nil
}
