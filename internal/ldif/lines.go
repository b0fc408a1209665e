package ldif

import (
	"bufio"
	"bytes"
	"io"
)

// maxLineSize bounds a single physical line. Certificates and photos
// routinely land in the hundreds of kilobytes once base64 encoded;
// bufio's default 64KiB token limit is too small for real LDIF, so the
// scanner's buffer is grown up to this size instead of the default.
const maxLineSize = 16 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// lineSource yields the raw physical lines of an LDIF stream along with
// their 1-based line numbers, stripping a leading UTF-8 byte-order mark
// from the very first line if present. It does not interpret comments,
// continuations, or blank lines — that is the record framer's job, one
// layer up — it only knows how to turn bytes into lines.
//
// When the current reader is exhausted, lineSource calls rollover (if
// set) for the next byte source before reporting io.EOF, so a single
// logical stream can span several io.Reader sources (e.g. an
// ImportConfig handing back one file after another). Line numbers count
// continuously across sources.
type lineSource struct {
	scanner  *bufio.Scanner
	rollover func() (io.Reader, bool)
	lineNo   int
	bomDone  bool
}

// newLineSource wraps r. rollover may be nil, in which case the source
// reports io.EOF as soon as r is exhausted.
func newLineSource(r io.Reader, rollover func() (io.Reader, bool)) *lineSource {
	return &lineSource{scanner: newBufScanner(r), rollover: rollover}
}

func newBufScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// next returns the next physical line and its line number, or io.EOF
// once every source (including any rollover sources) is exhausted.
func (ls *lineSource) next() (string, int, error) {
	for {
		if !ls.scanner.Scan() {
			if err := ls.scanner.Err(); err != nil {
				return "", 0, err
			}
			if ls.rollover != nil {
				if r, ok := ls.rollover(); ok {
					ls.scanner = newBufScanner(r)
					continue
				}
			}
			return "", 0, io.EOF
		}
		ls.lineNo++
		b := ls.scanner.Bytes()
		if ls.lineNo == 1 && !ls.bomDone {
			ls.bomDone = true
			b = bytes.TrimPrefix(b, utf8BOM)
		}
		return string(b), ls.lineNo, nil
	}
}
