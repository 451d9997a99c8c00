package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func tempStore(t *testing.T, opts ...StoreOption) (*Store, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	return NewStore(fs, opts...), fs
}

func TestHashObjectDeterminism(t *testing.T) {
	h1, err := HashObject(KindBlob, []byte("hello world"))
	if err != nil {
		t.Fatalf("HashObject: %v", err)
	}
	h2, _ := HashObject(KindBlob, []byte("hello world"))
	if h1 != h2 {
		t.Errorf("HashObject not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != HashHexLen {
		t.Errorf("Hash length: got %d, want %d", len(h1), HashHexLen)
	}
}

func TestHashObjectKnownDigest(t *testing.T) {
	// Same envelope as git's loose objects, so the empty blob matches git.
	h, err := HashObject(KindBlob, nil)
	if err != nil {
		t.Fatalf("HashObject: %v", err)
	}
	if h != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Errorf("empty blob digest: got %s", h)
	}
}

func TestHashObjectKindSeparation(t *testing.T) {
	data := []byte("same bytes")
	hb, _ := HashObject(KindBlob, data)
	hc, _ := HashObject(KindCommit, data)
	if hb == hc {
		t.Error("different kinds should produce different hashes")
	}
}

func TestHashIsLowerHex(t *testing.T) {
	h, _ := HashObject(KindBlob, []byte("test"))
	if !IsHash(string(h)) {
		t.Errorf("hash %q is not 40 lowercase hex characters", h)
	}
	if IsHash(strings.ToUpper(string(h))) {
		t.Error("uppercase digest should not be accepted")
	}
}

func TestStoreWriteRead(t *testing.T) {
	for _, c := range []Compression{CompressionZstd, CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			s, _ := tempStore(t, WithCompression(c))
			data := []byte("hello world")
			h, err := s.Write(KindBlob, data)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			want, _ := HashObject(KindBlob, data)
			if h != want {
				t.Errorf("Write digest: got %s, want %s", h, want)
			}

			kind, got, err := s.Read(h)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if kind != KindBlob {
				t.Errorf("Kind: got %s, want blob", kind)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Data: got %q, want %q", got, data)
			}
		})
	}
}

func TestStoreReadsEitherCompression(t *testing.T) {
	fs := memfs.New()
	plain := NewStore(fs, WithCompression(CompressionNone))
	h, err := plain.Write(KindBlob, []byte("mixed"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	packed := NewStore(fs, WithCompression(CompressionZstd))
	if _, data, err := packed.Read(h); err != nil || string(data) != "mixed" {
		t.Fatalf("Read through zstd store: %q, %v", data, err)
	}
}

func TestStoreHas(t *testing.T) {
	s, _ := tempStore(t)
	h, err := s.Write(KindBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(h) {
		t.Error("Has returned false for existing object")
	}
	if s.Has(Hash(strings.Repeat("0", HashHexLen))) {
		t.Error("Has returned true for non-existing object")
	}
	if s.Has("not-a-hash") {
		t.Error("Has returned true for malformed hash")
	}
}

func TestStoreFanoutLayout(t *testing.T) {
	s, fs := tempStore(t, WithCompression(CompressionNone))
	h, err := s.Write(KindBlob, []byte("format check"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := util.ReadFile(fs, fs.Join("objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "blob 12\x00format check"; string(raw) != want {
		t.Errorf("On-disk format: got %q, want %q", raw, want)
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	s, _ := tempStore(t)
	h1, err := s.Write(KindBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.Write(KindBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Same content produced different hashes: %q vs %q", h1, h2)
	}
	all, _ := s.List()
	if len(all) != 1 {
		t.Errorf("List: got %d objects, want 1", len(all))
	}
}

func TestStoreReadMissing(t *testing.T) {
	s, _ := tempStore(t)
	_, _, err := s.Read(Hash(strings.Repeat("0", HashHexLen)))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: got %v, want ErrNotFound", err)
	}
}

func TestStoreReadDetectsCorruption(t *testing.T) {
	s, fs := tempStore(t, WithCompression(CompressionNone))
	h, err := s.Write(KindBlob, []byte("original"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := fs.Join("objects", string(h[:2]), string(h[2:]))

	cases := map[string]string{
		"payload swapped": "blob 8\x00tampered",
		"length mismatch": "blob 99\x00original",
		"no separator":    "blob 8 original",
		"unknown kind":    "widget 8\x00original",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if err := util.WriteFile(fs, path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			_, _, err := s.Read(h)
			if !errors.Is(err, ErrCorruptObject) {
				t.Fatalf("Read: got %v, want ErrCorruptObject", err)
			}
		})
	}
}

func TestStoreTypedRoundTrip(t *testing.T) {
	s, _ := tempStore(t)

	bh, err := s.WriteBlob(&Blob{Data: []byte("blob content\nwith newlines")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	blob, err := s.ReadBlob(bh)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "blob content\nwith newlines" {
		t.Errorf("blob round-trip: %q", blob.Data)
	}

	th, err := s.WriteTree(&Tree{Entries: []TreeEntry{
		{Mode: ModeFile, Kind: KindBlob, Name: "z.txt", Hash: bh},
		{Mode: ModeExecutable, Kind: KindBlob, Name: "a.sh", Hash: bh},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	tree, err := s.ReadTree(th)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Entries) != 2 || tree.Entries[0].Name != "a.sh" || tree.Entries[1].Name != "z.txt" {
		t.Errorf("tree entries not sorted: %+v", tree.Entries)
	}

	ch, err := s.WriteCommit(&Commit{
		Tree:      th,
		Author:    "Test User <test@example.com>",
		Timestamp: 1700000000,
		Message:   "test commit\n\nWith details.",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	commit, err := s.ReadCommit(ch)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit.Tree != th || commit.Message != "test commit\n\nWith details." {
		t.Errorf("commit round-trip mismatch: %+v", commit)
	}

	obj, err := s.ReadObject(ch)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if _, ok := obj.(*Commit); !ok {
		t.Errorf("ReadObject: got %T, want *Commit", obj)
	}
}

func TestStoreReadKindMismatch(t *testing.T) {
	s, _ := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("just bytes")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	_, err = s.ReadCommit(h)
	if !errors.Is(err, ErrCorruptObject) {
		t.Fatalf("ReadCommit on blob: got %v, want ErrCorruptObject", err)
	}
	if !strings.Contains(err.Error(), "kind mismatch") {
		t.Errorf("expected kind mismatch error, got: %v", err)
	}
}

func TestStoreFindByPrefix(t *testing.T) {
	s, _ := tempStore(t)
	h, err := s.Write(KindBlob, []byte("abbrev"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.FindByPrefix(string(h[:7]))
	if err != nil {
		t.Fatalf("FindByPrefix: %v", err)
	}
	if got != h {
		t.Errorf("FindByPrefix: got %s, want %s", got, h)
	}
	if _, err := s.FindByPrefix("abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("short prefix: got %v, want ErrNotFound", err)
	}
	if _, err := s.FindByPrefix("zzzzzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("non-hex prefix: got %v, want ErrNotFound", err)
	}
}

func TestHashOnlyMatchesStore(t *testing.T) {
	s, _ := tempStore(t)
	want, err := s.Write(KindBlob, []byte("same"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := HashOnly{}.Write(KindBlob, []byte("same"))
	if err != nil {
		t.Fatalf("HashOnly.Write: %v", err)
	}
	if got != want {
		t.Errorf("HashOnly digest %s differs from store digest %s", got, want)
	}
}

func TestReachableAndVerify(t *testing.T) {
	s, fs := tempStore(t, WithCompression(CompressionNone))
	bh, _ := s.WriteBlob(&Blob{Data: []byte("x")})
	th, _ := s.WriteTree(&Tree{Entries: []TreeEntry{{Mode: ModeFile, Kind: KindBlob, Name: "x", Hash: bh}}})
	ch, err := s.WriteCommit(&Commit{Tree: th, Author: "a", Timestamp: 1, Message: "m"})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	orphan, _ := s.WriteBlob(&Blob{Data: []byte("orphan")})

	set, err := s.ReachableSet([]Hash{ch})
	if err != nil {
		t.Fatalf("ReachableSet: %v", err)
	}
	for _, h := range []Hash{ch, th, bh} {
		if _, ok := set[h]; !ok {
			t.Errorf("ReachableSet missing %s", h)
		}
	}
	if _, ok := set[orphan]; ok {
		t.Error("ReachableSet should not include orphan blob")
	}

	if err := s.Verify(); err != nil {
		t.Fatalf("Verify on healthy store: %v", err)
	}

	if err := fs.Remove(fs.Join("objects", string(bh[:2]), string(bh[2:]))); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	path := fs.Join("objects", string(orphan[:2]), string(orphan[2:]))
	if err := util.WriteFile(fs, path, []byte("blob 3\x00bad"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err = s.Verify()
	if err == nil {
		t.Fatal("Verify should report problems")
	}
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrCorruptObject) {
		t.Errorf("Verify should report both dangling and corrupt records, got: %v", err)
	}
}
