package action

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/anvil/internal/engine/tracker"
)

// responseFileLimit is the command line length above which arguments are
// moved into a response file. It stays below the 8192 byte limit of the
// strictest supported shell.
const responseFileLimit = 8100

// identityHash hashes the program path and the ordered argument list.
func identityHash(program string, args []string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(program)
	_, _ = h.Write([]byte{0})
	for _, a := range args {
		_, _ = h.WriteString(a)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// contentHash combines identity with the fingerprints of files. Zero is
// reserved for cache slots that never completed.
func contentHash(identity uint64, tr *tracker.Tracker, files []string) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], identity)
	_, _ = h.Write(buf[:])

	for _, f := range files {
		rec, ok := tr.Fingerprint(f)
		if !ok || rec.Missing {
			_, _ = h.Write([]byte{0})
			continue
		}
		binary.LittleEndian.PutUint64(buf[:], rec.Hash)
		_, _ = h.Write([]byte{1})
		_, _ = h.Write(buf[:])
	}

	if v := h.Sum64(); v != 0 {
		return v
	}
	return 1
}

// needsResponseFile reports whether the quoted command line is longer than
// responseFileLimit. Every element costs its length plus two quotes and a space.
func needsResponseFile(program string, args []string) bool {
	size := len(program) + 3
	for _, a := range args {
		size += len(a) + 3
	}
	return size > responseFileLimit
}

var argEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quoteArg(a string) string {
	return `"` + argEscaper.Replace(a) + `"`
}

// commandLine renders program and args quoted and separated by spaces.
func commandLine(program string, args []string) string {
	var b strings.Builder
	b.WriteString(quoteArg(program))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}
	return b.String()
}

// responseFileContent renders one quoted argument per line.
func responseFileContent(args []string) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(quoteArg(a))
		b.WriteByte('\n')
	}
	return b.String()
}
