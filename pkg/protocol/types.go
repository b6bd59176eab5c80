package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// Request is one status query: an opaque correlation id echoed back
// unchanged, and the directory to inspect. Immutable once decoded.
type Request struct {
	ID  string
	Dir string
}

// --- Reading ---

// Reader decodes framed requests from a byte stream. It is not safe for
// concurrent use; the daemon owns exactly one.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for request decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadRecord reads one record and returns its fields. The terminator is
// consumed but not returned. io.EOF is returned only on a clean EOF at a
// record boundary; a partial trailing record yields io.ErrUnexpectedEOF.
func (r *Reader) ReadRecord() ([][]byte, error) {
	raw, err := r.br.ReadBytes(RecordSep)
	if err != nil {
		if err == io.EOF && len(raw) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	raw = raw[:len(raw)-1] // strip terminator
	return bytes.Split(raw, []byte{FieldSep}), nil
}

// ReadRequest reads one request record. A record with the wrong field count
// or an empty directory is dropped and reported as a *FramingError; the
// stream is already positioned at the next record.
func (r *Reader) ReadRequest() (Request, error) {
	fields, err := r.ReadRecord()
	if err != nil {
		return Request{}, err
	}
	if len(fields) != 2 {
		return Request{}, &FramingError{
			Reason: "want 2 fields (id, dir), got " + strconv.Itoa(len(fields)),
			Frame:  bytes.Join(fields, []byte{FieldSep}),
		}
	}
	if len(fields[1]) == 0 {
		return Request{}, &FramingError{Reason: "empty directory field", Frame: fields[0]}
	}
	return Request{ID: string(fields[0]), Dir: string(fields[1])}, nil
}

// --- Writing ---

// ResponseWriter assembles one response record. Fields are appended in the
// fixed order the consumer expects:
//
//	workdir, revision, branch, upstream, remote url, state,
//	staged, unstaged, untracked, ahead, behind, stashes, tag
//
// The record is buffered until Flush, which writes it in a single call so a
// partially assembled response is never observable on the wire.
type ResponseWriter struct {
	buf    bytes.Buffer
	fields int
}

// NewResponse starts a response echoing the given request id.
func NewResponse(id string) *ResponseWriter {
	w := &ResponseWriter{}
	w.buf.WriteString(id)
	return w
}

// Print appends one string field.
func (w *ResponseWriter) Print(s string) {
	w.buf.WriteByte(FieldSep)
	w.buf.WriteString(s)
	w.fields++
}

// PrintInt appends one integer field in decimal.
func (w *ResponseWriter) PrintInt(n int) {
	w.Print(strconv.Itoa(n))
}

// Fields returns the number of fields appended so far, excluding the id.
func (w *ResponseWriter) Fields() int { return w.fields }

// Flush terminates the record and writes it to out in one call. The write is
// unbuffered on the daemon side: out is the response file descriptor, so the
// consumer sees the first byte as soon as Flush returns.
func (w *ResponseWriter) Flush(out io.Writer) error {
	w.buf.WriteByte(RecordSep)
	_, err := out.Write(w.buf.Bytes())
	return err
}
