package connectors

import (
	"bufio"
	"io"
	"log/slog"
	"os"
)

// maxLineBytes bounds a single JSONL line; session files occasionally embed
// large tool outputs, so the default bufio.Scanner 64KiB limit is too small.
const maxLineBytes = 10 * 1024 * 1024

// WalkLines opens path and calls fn once per non-empty line, skipping (and
// logging at debug level) any line fn itself rejects by returning false. A
// file that cannot be opened at all is skipped with a single warning line —
// it must never abort the rest of the scan.
func WalkLines(path string, log *slog.Logger, fn func(line []byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("connector: could not open session file", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			log.Debug("connector: skipped malformed line", "path", path, "line", lineNo)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Warn("connector: error reading session file", "path", path, "error", err)
	}
	return nil
}
