// Package diff3 implements a line-based three-way text merge.
package diff3

import (
	"bytes"
	"slices"
	"strings"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Both sides changed the region differently.
)

// Hunk is a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged    []byte // Full merged content, with conflict markers if any.
	Conflicts int    // Number of conflicting hunks.
	Hunks     []Hunk // Hunks in document order.
}

// HasConflicts reports whether any hunk conflicted.
func (r Result) HasConflicts() bool { return r.Conflicts > 0 }

// Labels name the sides in conflict markers. Base is only rendered when
// ShowBase is set.
type Labels struct {
	Ours     string
	Base     string
	Theirs   string
	ShowBase bool
}

// DefaultLabels are used by Merge.
var DefaultLabels = Labels{Ours: "ours", Base: "base", Theirs: "theirs"}

// Merge performs a three-way merge of base, ours and theirs with the
// default marker labels.
func Merge(base, ours, theirs []byte) Result {
	return MergeLabeled(base, ours, theirs, DefaultLabels)
}

// MergeLabeled performs a three-way merge. Each side is diffed against
// base; regions changed by only one side take that side, regions changed
// identically take either, and regions changed differently become a
// conflict bracketed by <<<<<<<, ======= and >>>>>>> markers.
func MergeLabeled(base, ours, theirs []byte, labels Labels) Result {
	baseLines := splitLines(base)
	m := merger{
		base:   baseLines,
		labels: labels,
	}
	m.run(buildChunks(baseLines, splitLines(ours)), buildChunks(baseLines, splitLines(theirs)))

	merged := m.out.Bytes()
	// Keep a missing final newline when both sides agree on it.
	if !endsWithNewline(ours) && !endsWithNewline(theirs) && len(merged) > 0 &&
		len(m.hunks) > 0 && m.hunks[len(m.hunks)-1].Type == HunkClean {
		merged = merged[:len(merged)-1]
	}
	return Result{Merged: merged, Conflicts: m.conflicts, Hunks: m.hunks}
}

func endsWithNewline(b []byte) bool {
	return len(b) == 0 || b[len(b)-1] == '\n'
}

// splitLines splits s into lines. A trailing newline does not produce an
// extra empty element.
func splitLines(s []byte) []string {
	if len(s) == 0 {
		return nil
	}
	lines := strings.Split(string(s), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk is a contiguous region of base and what one side put there.
type chunk struct {
	baseStart, baseEnd int      // [baseStart, baseEnd) in base
	lines              []string // replacement lines from the side
	changed            bool
}

// buildChunks converts a two-way diff into chunks that tile base: one
// unchanged chunk per equal line and one changed chunk per run of edits.
// Pure insertions are zero-width chunks.
func buildChunks(base, side []string) []chunk {
	ops := Diff(base, side)

	var chunks []chunk
	baseIdx := 0
	for i := 0; i < len(ops); {
		if ops[i].Type == Equal {
			chunks = append(chunks, chunk{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{ops[i].Line},
			})
			baseIdx++
			i++
			continue
		}

		start := baseIdx
		var lines []string
		for ; i < len(ops) && ops[i].Type != Equal; i++ {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				lines = append(lines, ops[i].Line)
			}
		}
		chunks = append(chunks, chunk{baseStart: start, baseEnd: baseIdx, lines: lines, changed: true})
	}
	return chunks
}

type merger struct {
	base      []string
	labels    Labels
	out       bytes.Buffer
	hunks     []Hunk
	conflicts int
}

// run walks both chunk lists in base order. Both lists tile base, so each
// step starts both sides at the same base offset. The region covered by
// the two head chunks is grown by every chunk, on either side, that starts
// inside it, until neither side extends it any further; the region is then
// resolved as a whole.
func (m *merger) run(ours, theirs []chunk) {
	oi, ti := 0, 0
	for oi < len(ours) || ti < len(theirs) {
		switch {
		case oi == len(ours):
			m.resolve(theirs[ti].baseStart, theirs[ti].baseEnd, nil, theirs[ti:ti+1])
			ti++
			continue
		case ti == len(theirs):
			m.resolve(ours[oi].baseStart, ours[oi].baseEnd, ours[oi:oi+1], nil)
			oi++
			continue
		}

		start := min(ours[oi].baseStart, theirs[ti].baseStart)
		end := max(ours[oi].baseEnd, theirs[ti].baseEnd)
		o0, t0 := oi, ti
		oi++
		ti++
		for grew := true; grew; {
			grew = false
			for oi < len(ours) && ours[oi].baseStart < end {
				end = max(end, ours[oi].baseEnd)
				oi++
				grew = true
			}
			for ti < len(theirs) && theirs[ti].baseStart < end {
				end = max(end, theirs[ti].baseEnd)
				ti++
				grew = true
			}
		}
		m.resolve(start, end, ours[o0:oi], theirs[t0:ti])
	}
}

// resolve emits one region of base given the chunks each side laid over it.
// A side without chunks is treated as unchanged.
func (m *merger) resolve(start, end int, ours, theirs []chunk) {
	baseRegion := m.base[start:end]
	oursLines, oursChanged := assemble(ours, baseRegion)
	theirsLines, theirsChanged := assemble(theirs, baseRegion)

	h := Hunk{Base: joinLines(baseRegion)}
	switch {
	case !oursChanged && !theirsChanged:
		h.Merged = joinLines(baseRegion)
	case oursChanged && !theirsChanged:
		h.Ours = joinLines(oursLines)
		h.Merged = h.Ours
	case !oursChanged && theirsChanged:
		h.Theirs = joinLines(theirsLines)
		h.Merged = h.Theirs
	case linesEqual(oursLines, theirsLines):
		h.Ours = joinLines(oursLines)
		h.Theirs = h.Ours
		h.Merged = h.Ours
	default:
		h.Type = HunkConflict
		h.Ours = joinLines(oursLines)
		h.Theirs = joinLines(theirsLines)
		m.conflicts++
		m.writeConflict(oursLines, baseRegion, theirsLines)
		m.hunks = append(m.hunks, h)
		return
	}
	m.out.Write(h.Merged)
	if n := len(m.hunks); n > 0 && m.hunks[n-1].Type == HunkClean {
		last := &m.hunks[n-1]
		last.Base = append(slices.Clip(last.Base), h.Base...)
		last.Ours = append(slices.Clip(last.Ours), h.Ours...)
		last.Theirs = append(slices.Clip(last.Theirs), h.Theirs...)
		last.Merged = append(slices.Clip(last.Merged), h.Merged...)
		return
	}
	m.hunks = append(m.hunks, h)
}

func assemble(chunks []chunk, baseRegion []string) ([]string, bool) {
	if len(chunks) == 0 {
		return baseRegion, false
	}
	var lines []string
	changed := false
	for _, c := range chunks {
		lines = append(lines, c.lines...)
		changed = changed || c.changed
	}
	return lines, changed
}

func (m *merger) writeConflict(ours, base, theirs []string) {
	marker := func(sym, label string) {
		m.out.WriteString(sym)
		if label != "" {
			m.out.WriteByte(' ')
			m.out.WriteString(label)
		}
		m.out.WriteByte('\n')
	}
	marker("<<<<<<<", m.labels.Ours)
	m.out.Write(joinLines(ours))
	if m.labels.ShowBase {
		marker("|||||||", m.labels.Base)
		m.out.Write(joinLines(base))
	}
	marker("=======", "")
	m.out.Write(joinLines(theirs))
	marker(">>>>>>>", m.labels.Theirs)
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
