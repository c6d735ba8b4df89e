package merge

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	markerLocal  = "<<<<<<< local\n"
	markerSplit  = "=======\n"
	markerRemote = ">>>>>>> remote\n"
)

// hunk replaces ancestor lines [start, end) with lines
type hunk struct {
	start, end int
	lines      []string
}

// ThreeWay merges local and remote edits of ancestor line by line. Edits to
// disjoint line ranges are both applied. Overlapping edits that differ are kept
// side by side between conflict markers and ok is false.
func ThreeWay(ancestor, local, remote []byte) (merged []byte, ok bool) {
	base := splitLines(string(ancestor))
	localHunks := diffHunks(string(ancestor), string(local))
	remoteHunks := diffHunks(string(ancestor), string(remote))

	var out strings.Builder
	ok = true
	pos := 0
	i, j := 0, 0
	for i < len(localHunks) || j < len(remoteHunks) {
		var first hunk
		var fromLocal bool
		if j >= len(remoteHunks) || (i < len(localHunks) && localHunks[i].start <= remoteHunks[j].start) {
			first, fromLocal = localHunks[i], true
			i++
		} else {
			first = remoteHunks[j]
			j++
		}

		start, end := first.start, first.end
		var ours, theirs []hunk
		if fromLocal {
			ours = append(ours, first)
		} else {
			theirs = append(theirs, first)
		}

		// grow the region until no hunk on either side touches it
		for {
			if i < len(localHunks) && overlaps(localHunks[i], start, end) {
				ours = append(ours, localHunks[i])
				end = max(end, localHunks[i].end)
				i++
				continue
			}
			if j < len(remoteHunks) && overlaps(remoteHunks[j], start, end) {
				theirs = append(theirs, remoteHunks[j])
				end = max(end, remoteHunks[j].end)
				j++
				continue
			}
			break
		}

		writeLines(&out, base[pos:start])
		switch {
		case len(theirs) == 0:
			writeLines(&out, apply(base, ours, start, end))
		case len(ours) == 0:
			writeLines(&out, apply(base, theirs, start, end))
		default:
			l, r := apply(base, ours, start, end), apply(base, theirs, start, end)
			if equalLines(l, r) {
				writeLines(&out, l)
				break
			}
			ok = false
			out.WriteString(markerLocal)
			writeBlock(&out, l)
			out.WriteString(markerSplit)
			writeBlock(&out, r)
			out.WriteString(markerRemote)
		}
		pos = end
	}
	writeLines(&out, base[pos:])

	return []byte(out.String()), ok
}

// overlaps reports whether h touches [start, end). Two insertions at the same point overlap.
func overlaps(h hunk, start, end int) bool {
	return h.start < end || h.start == start
}

// apply rebuilds ancestor lines [start, end) with hunks applied
func apply(base []string, hunks []hunk, start, end int) []string {
	var out []string
	pos := start
	for _, h := range hunks {
		out = append(out, base[pos:h.start]...)
		out = append(out, h.lines...)
		pos = h.end
	}
	return append(out, base[pos:end]...)
}

func diffHunks(a, b string) []hunk {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	// one rune per line turns the character diff into a line diff
	runesA, runesB, lineArray := dmp.DiffLinesToRunes(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(runesA, runesB, false), lineArray)

	var hunks []hunk
	var cur *hunk
	pos := 0
	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			if cur != nil {
				hunks = append(hunks, *cur)
				cur = nil
			}
			pos += len(lines)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &hunk{start: pos, end: pos}
			}
			cur.end += len(lines)
			pos += len(lines)
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &hunk{start: pos, end: pos}
			}
			cur.lines = append(cur.lines, lines...)
		}
	}
	if cur != nil {
		hunks = append(hunks, *cur)
	}
	return hunks
}

// splitLines keeps line terminators so joining is lossless
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(out *strings.Builder, lines []string) {
	for _, l := range lines {
		out.WriteString(l)
	}
}

// writeBlock writes lines and terminates the last one so a marker can follow
func writeBlock(out *strings.Builder, lines []string) {
	writeLines(out, lines)
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		out.WriteString("\n")
	}
}

func equalLines(a, b []string) bool {
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
