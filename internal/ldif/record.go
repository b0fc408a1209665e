package ldif

import (
	"io"
	"strings"
)

// logicalLine is one attr/value line after continuation folding, tagged
// with the physical line number it started on for diagnostics.
type logicalLine struct {
	text string
	line int
}

// record is one LDIF entry or change record's worth of logical lines,
// as delimited by a blank line (or end of stream).
type record struct {
	lines     []logicalLine
	startLine int
}

// recordReader groups the physical lines from a lineSource into records:
// it folds continuation lines onto their predecessor, discards comment
// lines (including their continuations), and splits on blank lines.
type recordReader struct {
	src *lineSource

	bufActive   bool
	bufIsComment bool
	buf         strings.Builder
	bufLine     int

	cur record
}

func newRecordReader(src *lineSource) *recordReader {
	return &recordReader{src: src}
}

// next returns the next record, or io.EOF when the stream is exhausted.
func (rr *recordReader) next() (*record, error) {
	for {
		text, lineNo, err := rr.src.next()
		if err != nil {
			if err == io.EOF {
				rr.flush()
				if len(rr.cur.lines) > 0 {
					rec := rr.cur
					rr.cur = record{}
					return &rec, nil
				}
			}
			return nil, err
		}

		if len(text) > 0 && (text[0] == ' ' || text[0] == '\t') {
			if !rr.bufActive {
				bad := &record{startLine: lineNo, lines: []logicalLine{{text: text, line: lineNo}}}
				return bad, newParseError(lineNo, true, ErrLeadingSpace)
			}
			rr.buf.WriteString(text[1:])
			continue
		}

		rr.flush()

		switch {
		case text == "":
			if len(rr.cur.lines) > 0 {
				rec := rr.cur
				rr.cur = record{}
				return &rec, nil
			}
			// consecutive blank lines between records: ignore.
		case text[0] == '#':
			rr.bufActive = true
			rr.bufIsComment = true
			rr.buf.Reset()
			rr.bufLine = lineNo
		default:
			rr.bufActive = true
			rr.bufIsComment = false
			rr.buf.Reset()
			rr.buf.WriteString(text)
			rr.bufLine = lineNo
		}
	}
}

// flush closes out the line currently being accumulated, if any, adding
// it to the current record unless it was a comment.
func (rr *recordReader) flush() {
	if !rr.bufActive {
		return
	}
	if !rr.bufIsComment {
		if len(rr.cur.lines) == 0 {
			rr.cur.startLine = rr.bufLine
		}
		rr.cur.lines = append(rr.cur.lines, logicalLine{text: rr.buf.String(), line: rr.bufLine})
	}
	rr.bufActive = false
}
