package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zstd"
)

// Writer persists encoded objects and returns their digest.
type Writer interface {
	Write(kind Kind, payload []byte) (Hash, error)
}

// Reader retrieves encoded objects by digest.
type Reader interface {
	Read(h Hash) (Kind, []byte, error)
}

// Compression selects how records are laid out on disk.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	fs          billy.Filesystem
	compression Compression

	codecOnce sync.Once
	codecErr  error
	enc       *zstd.Encoder
	dec       *zstd.Decoder
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCompression sets the on-disk record compression. Records written
// with any setting remain readable under every other setting.
func WithCompression(c Compression) StoreOption {
	return func(s *Store) { s.compression = c }
}

// NewStore creates a Store on fs, which must be rooted at the repository
// control directory. The objects/ subdirectory is created lazily on first
// write.
func NewStore(fs billy.Filesystem, opts ...StoreOption) *Store {
	s := &Store{fs: fs, compression: CompressionZstd}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) codec() error {
	s.codecOnce.Do(func() {
		s.enc, s.codecErr = zstd.NewWriter(nil)
		if s.codecErr != nil {
			return
		}
		s.dec, s.codecErr = zstd.NewReader(nil)
	})
	return s.codecErr
}

// objectPath returns the path for a given hash relative to the control dir.
func (s *Store) objectPath(h Hash) string {
	return s.fs.Join("objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !IsHash(string(h)) {
		return false
	}
	_, err := s.fs.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing the same
// content twice is a no-op after the first call. Writes are atomic: data is
// written to a temp file and then renamed into place.
func (s *Store) Write(kind Kind, payload []byte) (Hash, error) {
	raw := Envelope(kind, payload)
	h, err := HashRecord(raw)
	if err != nil {
		return "", fmt.Errorf("object write: %w", err)
	}

	if s.Has(h) {
		return h, nil
	}

	record := raw
	if s.compression == CompressionZstd {
		if err := s.codec(); err != nil {
			return "", fmt.Errorf("object write: zstd: %w", err)
		}
		record = s.enc.EncodeAll(raw, nil)
	}

	dir := s.fs.Join("objects", string(h[:2]))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := s.fs.TempFile(dir, ".tmp-")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.objectPath(h)); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its kind and payload. The
// record is re-hashed so a damaged file can never be returned silently.
func (s *Store) Read(h Hash) (Kind, []byte, error) {
	if !IsHash(string(h)) {
		return 0, nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	raw, err := s.readFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if bytes.HasPrefix(raw, zstdMagic) {
		if err := s.codec(); err != nil {
			return 0, nil, fmt.Errorf("object read %s: zstd: %w", h, err)
		}
		raw, err = s.dec.DecodeAll(raw, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
		}
	}

	kind, payload, err := parseEnvelope(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	got, err := HashRecord(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if got != h {
		return 0, nil, fmt.Errorf("object read %s: %w: content hashes to %s", h, ErrCorruptObject, got)
	}
	return kind, payload, nil
}

// parseEnvelope splits "kind len\0payload".
func parseEnvelope(raw []byte) (Kind, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return 0, nil, fmt.Errorf("%w: invalid format (no NUL)", ErrCorruptObject)
	}
	header := string(raw[:nulIdx])
	payload := raw[nulIdx+1:]

	tag, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return 0, nil, fmt.Errorf("%w: invalid header %q", ErrCorruptObject, header)
	}
	kind, err := ParseKind(tag)
	if err != nil {
		return 0, nil, err
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || strconv.Itoa(length) != lenStr {
		return 0, nil, fmt.Errorf("%w: invalid length %q", ErrCorruptObject, lenStr)
	}
	if len(payload) != length {
		return 0, nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrCorruptObject, length, len(payload))
	}
	return kind, payload, nil
}

func (s *Store) readFile(path string) ([]byte, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// FindByPrefix resolves an abbreviated hex digest of at least 4 characters
// to the single stored object it identifies.
func (s *Store) FindByPrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < 4 || len(prefix) > HashHexLen || !isHex(prefix) {
		return "", fmt.Errorf("find object %q: %w", prefix, ErrNotFound)
	}
	if len(prefix) == HashHexLen {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("find object %q: %w", prefix, ErrNotFound)
	}

	infos, err := s.fs.ReadDir(s.fs.Join("objects", prefix[:2]))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("find object %q: %w", prefix, ErrNotFound)
		}
		return "", fmt.Errorf("find object %q: %w", prefix, err)
	}
	var matches []Hash
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasPrefix(name, prefix[2:]) {
			matches = append(matches, Hash(prefix[:2]+name))
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("find object %q: %w", prefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("find object %q: ambiguous prefix matches %d objects", prefix, len(matches))
	}
}

// List returns every stored object hash in sorted order.
func (s *Store) List() ([]Hash, error) {
	fanout, err := s.fs.ReadDir("objects")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list objects: %w", err)
	}
	var out []Hash
	for _, dir := range fanout {
		if !dir.IsDir() || len(dir.Name()) != 2 {
			continue
		}
		files, err := s.fs.ReadDir(s.fs.Join("objects", dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", dir.Name(), err)
		}
		for _, f := range files {
			h := dir.Name() + f.Name()
			if f.IsDir() || !IsHash(h) {
				continue
			}
			out = append(out, Hash(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteObject encodes and stores any object.
func (s *Store) WriteObject(obj Object) (Hash, error) {
	return WriteObject(s, obj)
}

// WriteObject encodes obj and hands it to w.
func WriteObject(w Writer, obj Object) (Hash, error) {
	kind, data, err := Encode(obj)
	if err != nil {
		return "", err
	}
	return w.Write(kind, data)
}

// ReadObject reads and decodes any object.
func (s *Store) ReadObject(h Hash) (Object, error) {
	kind, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	obj, err := Decode(kind, data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return obj, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(KindBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readKind(h, KindBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data), nil
}

// WriteTree serializes and stores a Tree.
func (s *Store) WriteTree(tr *Tree) (Hash, error) {
	return WriteObject(s, tr)
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	data, err := s.readKind(h, KindTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return WriteObject(s, c)
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	data, err := s.readKind(h, KindCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}

func (s *Store) readKind(h Hash, want Kind) ([]byte, error) {
	kind, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, fmt.Errorf("object %s: %w: kind mismatch: got %s, want %s", h, ErrCorruptObject, kind, want)
	}
	return data, nil
}
