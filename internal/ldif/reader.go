package ldif

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oba-directory/oba/internal/logging"
)

// Reader drives the LDIF pipeline: it pulls physical lines from a
// lineSource, groups them into records with a recordReader, and hands
// each record to the entry assembler or the change-record parser
// depending on what ReadEntry/ReadChangeRecord the caller invoked.
//
// A Reader is single-threaded: ReadEntry, ReadChangeRecord, and Close
// must not be called concurrently. The running counters (EntriesRead,
// EntriesIgnored, EntriesRejected) are safe to poll from another
// goroutine while a read is in flight, and RejectEntry is safe to call
// concurrently with everything else — it is the one operation an
// external consumer (e.g. the storage layer, once it has tried and
// failed to commit an already-emitted entry) needs to call back into
// after the read that produced the entry has already returned.
type Reader struct {
	rr     *recordReader
	cfg    ImportConfig
	schema Schema
	plugin ImportPlugin
	logger logging.Logger
	closer io.Closer

	versionChecked bool
	pluginStarted  bool

	entriesRead     int64
	entriesIgnored  int64
	entriesRejected int64

	rejectMu     sync.Mutex
	rejectWriter io.Writer
	skipWriter   io.Writer

	closed bool
}

// NewReader returns a Reader over r using cfg for import policy. cfg
// must not be nil; use DefaultImportConfig{} for RFC 2849's plain
// behavior. If cfg.NextReader returns a further source once r is
// exhausted, the reader transparently rolls over to it. If r also
// implements io.Closer, Close closes it.
func NewReader(r io.Reader, cfg ImportConfig) *Reader {
	rd := &Reader{
		rr:     newRecordReader(newLineSource(r, cfg.NextReader)),
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// SetSchema attaches the schema the assembler validates entries
// against. It may be nil, in which case ValidateSchema() on the
// ImportConfig must be false or every read will fail with
// ErrNoSchemaAttached.
func (rd *Reader) SetSchema(s Schema) { rd.schema = s }

// SetPlugin attaches the import plugin hook, invoked once per assembled
// entry before schema validation.
func (rd *Reader) SetPlugin(p ImportPlugin) { rd.plugin = p }

// SetLogger attaches a structured logger. Framing decisions log at
// debug, non-fatal schema conditions at warn; a reject or skip routed
// condition is never logged at error, since the reader itself continued
// successfully past it.
func (rd *Reader) SetLogger(l logging.Logger) {
	if l != nil {
		rd.logger = l
	}
}

// SetRejectWriter attaches the writer rejected entries (and their
// ParseError) are appended to in LDIF-comment form. It may be nil to
// discard rejections silently.
func (rd *Reader) SetRejectWriter(w io.Writer) { rd.rejectWriter = w }

// SetSkipWriter attaches the writer entries excluded by policy (DN
// exclusion filters, not errors) are appended to.
func (rd *Reader) SetSkipWriter(w io.Writer) { rd.skipWriter = w }

// EntriesRead returns the number of records the reader has attempted to
// process so far: entries_read = emitted + ignored + rejected, counted
// the moment a record is pulled from the framer, before filtering or
// validation runs.
func (rd *Reader) EntriesRead() int64 { return atomic.LoadInt64(&rd.entriesRead) }

// EntriesIgnored returns the number of entries skipped by policy
// (DN exclusion, or found while content-mode reading hit a change
// record) rather than rejected for an error.
func (rd *Reader) EntriesIgnored() int64 { return atomic.LoadInt64(&rd.entriesIgnored) }

// EntriesRejected returns the number of entries that failed assembly or
// schema validation, whether discovered during reading or reported
// later via RejectEntry.
func (rd *Reader) EntriesRejected() int64 { return atomic.LoadInt64(&rd.entriesRejected) }

// ReadEntry returns the next content entry from the stream. It returns
// io.EOF once the stream is exhausted. Records carrying a "changetype:"
// line are counted as ignored and skipped; use ReadChangeRecord for a
// changes-type LDIF stream.
func (rd *Reader) ReadEntry() (*Entry, error) {
	if rd.closed {
		return nil, ErrReaderClosed
	}
	if err := rd.ensurePluginSession(); err != nil {
		return nil, err
	}
	for {
		rec, err := rd.pull()
		if err != nil {
			if err == io.EOF {
				rd.endPluginSession()
				return nil, io.EOF
			}
			if perr, ok := err.(*ParseError); ok && rec != nil {
				atomic.AddInt64(&rd.entriesRead, 1)
				if !rd.handleRejection(rec, perr) {
					rd.endPluginSession()
					return nil, err
				}
				continue
			}
			rd.endPluginSession()
			return nil, err
		}
		if rec == nil {
			continue
		}
		atomic.AddInt64(&rd.entriesRead, 1)

		if isChangeRecord(rec) {
			atomic.AddInt64(&rd.entriesIgnored, 1)
			rd.logger.Warn("ignoring change record in content stream", "line", rec.startLine)
			continue
		}
		if dn, ok := recordDN(rec); ok && rd.cfg.ExcludeDN(dn) {
			atomic.AddInt64(&rd.entriesIgnored, 1)
			rd.writeSkip(rec)
			continue
		}

		entry, err := assembleEntry(rec, rd.cfg, rd.schema, rd.plugin, rd.logger)
		if err != nil {
			if _, ok := err.(*entryFiltered); ok {
				atomic.AddInt64(&rd.entriesIgnored, 1)
				rd.writeSkip(rec)
				continue
			}
			if !rd.handleRejection(rec, err) {
				rd.endPluginSession()
				return nil, err
			}
			continue
		}
		return entry, nil
	}
}

// ReadChangeRecord returns the next change record from the stream. It
// returns io.EOF once the stream is exhausted. Records with no
// "changetype:" line are counted as ignored and skipped.
func (rd *Reader) ReadChangeRecord() (*ChangeRecord, error) {
	if rd.closed {
		return nil, ErrReaderClosed
	}
	if err := rd.ensurePluginSession(); err != nil {
		return nil, err
	}
	for {
		rec, err := rd.pull()
		if err != nil {
			if err == io.EOF {
				rd.endPluginSession()
				return nil, io.EOF
			}
			if perr, ok := err.(*ParseError); ok && rec != nil {
				atomic.AddInt64(&rd.entriesRead, 1)
				if !rd.handleRejection(rec, perr) {
					rd.endPluginSession()
					return nil, err
				}
				continue
			}
			rd.endPluginSession()
			return nil, err
		}
		if rec == nil {
			continue
		}
		atomic.AddInt64(&rd.entriesRead, 1)

		if !isChangeRecord(rec) {
			atomic.AddInt64(&rd.entriesIgnored, 1)
			rd.logger.Warn("ignoring content entry in changes stream", "line", rec.startLine)
			continue
		}

		cr, err := parseChangeRecord(rec, rd.cfg)
		if err != nil {
			if !rd.handleRejection(rec, err) {
				rd.endPluginSession()
				return nil, err
			}
			continue
		}
		return cr, nil
	}
}

// pull reads the next record, transparently discarding a leading
// "version: 1" pseudo-record. It returns (nil, nil) when the caller
// should loop again (version record consumed), and (nil, io.EOF) at end
// of stream. On a framing error (an orphan continuation line, or a bad
// version directive) it returns a non-nil *ParseError together with a
// record carrying enough of the offending input for reject-channel
// routing; a plain I/O error (not io.EOF) comes back with a nil record,
// since it is not a per-record condition and must not be counted as
// rejected (spec.md §7's I/O-failure taxonomy).
func (rd *Reader) pull() (*record, error) {
	rec, err := rd.rr.next()
	if err != nil {
		return rec, err
	}
	if !rd.versionChecked {
		rd.versionChecked = true
		if isVersionRecord(rec) {
			if err := checkVersionRecord(rec); err != nil {
				return rec, err
			}
			rd.logger.Debug("ldif version directive accepted", "line", rec.startLine)
			return nil, nil
		}
	}
	return rec, nil
}

// handleRejection routes an assembly/validation failure to the reject
// writer and the rejected counter, and reports whether the reader can
// keep going (true) or must surface err to the caller and stop (false).
func (rd *Reader) handleRejection(rec *record, err error) bool {
	atomic.AddInt64(&rd.entriesRejected, 1)
	perr, ok := err.(*ParseError)
	if !ok {
		perr = &ParseError{Line: rec.startLine, Message: err.Error(), Err: err}
	}
	rd.logger.Warn("rejecting entry", "line", perr.Line, "reason", perr.Message)
	rd.writeReject(rec, perr)
	return perr.CanContinue
}

// ensurePluginSession calls the attached plugin's BeginSession exactly
// once, on the first read.
func (rd *Reader) ensurePluginSession() error {
	if rd.plugin == nil || rd.pluginStarted {
		return nil
	}
	rd.pluginStarted = true
	return rd.plugin.BeginSession()
}

// endPluginSession calls the attached plugin's EndSession once reading
// has stopped, whether at end of stream or on a fatal error.
func (rd *Reader) endPluginSession() {
	if rd.plugin != nil && rd.pluginStarted {
		rd.plugin.EndSession()
		rd.pluginStarted = false
	}
}

// RejectEntry lets an external collaborator (typically the storage
// layer, after trying and failing to commit an already-emitted entry)
// report a post-parse rejection. It is the one Reader operation safe to
// call from a goroutine other than the one driving ReadEntry/
// ReadChangeRecord.
func (rd *Reader) RejectEntry(entry *Entry, reason string) error {
	rd.rejectMu.Lock()
	defer rd.rejectMu.Unlock()

	atomic.AddInt64(&rd.entriesRejected, 1)
	if rd.rejectWriter == nil {
		return nil
	}
	_, err := fmt.Fprintf(rd.rejectWriter, "# %s\ndn: %s\n\n", reason, entry.DN.String())
	return err
}

func (rd *Reader) writeReject(rec *record, perr *ParseError) {
	rd.rejectMu.Lock()
	defer rd.rejectMu.Unlock()
	if rd.rejectWriter == nil {
		return
	}
	fmt.Fprintf(rd.rejectWriter, "# %s\n", perr.Message)
	for _, ll := range rec.lines {
		fmt.Fprintln(rd.rejectWriter, ll.text)
	}
	fmt.Fprintln(rd.rejectWriter)
}

func (rd *Reader) writeSkip(rec *record) {
	rd.rejectMu.Lock()
	defer rd.rejectMu.Unlock()
	if rd.skipWriter == nil {
		return
	}
	for _, ll := range rec.lines {
		fmt.Fprintln(rd.skipWriter, ll.text)
	}
	fmt.Fprintln(rd.skipWriter)
}

// Close releases the underlying stream, if it was an io.Closer.
func (rd *Reader) Close() error {
	if rd.closed {
		return nil
	}
	rd.closed = true
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}

func isVersionRecord(rec *record) bool {
	return len(rec.lines) == 1 && strings.HasPrefix(strings.ToLower(rec.lines[0].text), "version:")
}

func checkVersionRecord(rec *record) error {
	idx := strings.IndexByte(rec.lines[0].text, ':')
	v := strings.TrimSpace(rec.lines[0].text[idx+1:])
	if v != "1" {
		return newParseError(rec.lines[0].line, false, ErrBadVersion)
	}
	return nil
}

func isChangeRecord(rec *record) bool {
	if len(rec.lines) < 2 {
		return false
	}
	idx := strings.IndexByte(rec.lines[1].text, ':')
	if idx < 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(rec.lines[1].text[:idx]), "changetype")
}

// recordDN extracts the raw (not yet parsed) DN value from a record's
// header line, for the DN-exclusion check which must run before the
// more expensive full assembly.
func recordDN(rec *record) (string, bool) {
	if len(rec.lines) == 0 {
		return "", false
	}
	text := rec.lines[0].text
	idx := strings.IndexByte(text, ':')
	if idx < 0 || !strings.EqualFold(text[:idx], "dn") {
		return "", false
	}
	rest := text[idx+1:]
	if strings.HasPrefix(rest, ":") {
		return "", false // base64 DN: let full assembly handle exclusion
	}
	return strings.TrimSpace(rest), true
}
