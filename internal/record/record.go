// Package record builds the integrity ledger that wheel-style archives
// serialize as their RECORD file.
package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Entry is one ledger line: a slash-separated archive path, the unpadded
// URL-safe base64 rendering of the content's SHA-256 digest, and the
// content length in bytes.
type Entry struct {
	Path string
	Hash string
	Size int
}

// Ledger accumulates one Entry per written archive file, in write order.
// The zero value is ready to use.
type Ledger struct {
	entries []Entry
}

// Add hashes content and appends its entry for path.
func (l *Ledger) Add(path string, content []byte) {
	sum := sha256.Sum256(content)
	l.entries = append(l.entries, Entry{
		Path: path,
		Hash: base64.RawURLEncoding.EncodeToString(sum[:]),
		Size: len(content),
	})
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns the recorded entries in write order.
func (l *Ledger) Entries() []Entry {
	return l.entries
}

// Serialize renders the ledger in RECORD format: one
// "path,sha256=<hash>,<size>" line per entry, terminated by a line for
// recordPath itself with empty hash and size fields. The record file
// cannot hash itself, so its own line always comes last and stays empty.
func (l *Ledger) Serialize(recordPath string) []byte {
	var buf bytes.Buffer
	for _, e := range l.entries {
		fmt.Fprintf(&buf, "%s,sha256=%s,%d\n", e.Path, e.Hash, e.Size)
	}
	fmt.Fprintf(&buf, "%s,,\n", recordPath)
	return buf.Bytes()
}
