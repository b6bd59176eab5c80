package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"statusd/pkg/protocol"
)

// frame builds a record from fields using the wire separators.
func frame(fields ...string) string {
	return strings.Join(fields, string(protocol.FieldSep)) + string(protocol.RecordSep)
}

func TestReadRequest_Single(t *testing.T) {
	r := protocol.NewReader(strings.NewReader(frame("req-1", "/tmp/repo")))

	req, err := r.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest failed: %v", err)
	}
	if req.ID != "req-1" || req.Dir != "/tmp/repo" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := r.ReadRequest(); err != io.EOF {
		t.Fatalf("expected io.EOF after last record, got %v", err)
	}
}

func TestReadRequest_ResyncAfterMalformed(t *testing.T) {
	input := frame("only-one-field") + frame("req-2", "/repo")
	r := protocol.NewReader(strings.NewReader(input))

	_, err := r.ReadRequest()
	var fe *protocol.FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FramingError, got %v", err)
	}

	// The reader must have resynchronized: the next record decodes fine.
	req, err := r.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest after resync failed: %v", err)
	}
	if req.ID != "req-2" {
		t.Fatalf("expected req-2 after resync, got %q", req.ID)
	}
}

func TestReadRequest_EmptyDir(t *testing.T) {
	r := protocol.NewReader(strings.NewReader(frame("req-3", "")))
	_, err := r.ReadRequest()
	var fe *protocol.FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FramingError for empty dir, got %v", err)
	}
}

func TestReadRequest_TruncatedRecord(t *testing.T) {
	// No record separator before EOF.
	r := protocol.NewReader(strings.NewReader("req-4\x1f/repo"))
	if _, err := r.ReadRequest(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestResponseWriter_RoundTrip(t *testing.T) {
	w := protocol.NewResponse("id-7")
	w.Print("/repo")
	w.Print("0123456789abcdef0123456789abcdef01234567")
	w.Print("main")
	w.Print("origin/main")
	w.Print("git@example.com:repo.git")
	w.Print(protocol.StateNone)
	w.PrintInt(1)
	w.PrintInt(0)
	w.PrintInt(0)
	w.PrintInt(0)
	w.PrintInt(1)
	w.PrintInt(0)
	w.Print("v1.0")

	if w.Fields() != protocol.NumStatusFields {
		t.Fatalf("expected %d fields, got %d", protocol.NumStatusFields, w.Fields())
	}

	var buf bytes.Buffer
	if err := w.Flush(&buf); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	fields, err := protocol.NewReader(&buf).ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	st, err := protocol.ParseStatus(fields)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if st.ID != "id-7" || st.Workdir != "/repo" || st.Branch != "main" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.Staged != 1 || st.Behind != 1 || st.Tag != "v1.0" {
		t.Fatalf("unexpected numeric/tag fields: %+v", st)
	}
}

func TestResponseWriter_SingleWrite(t *testing.T) {
	w := protocol.NewResponse("id")
	w.Print("/repo")

	cw := &countingWriter{}
	if err := w.Flush(cw); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if cw.calls != 1 {
		t.Fatalf("expected exactly one Write call, got %d", cw.calls)
	}
}

type countingWriter struct {
	calls int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.calls++
	return len(p), nil
}

func TestParseStatus_BadIntField(t *testing.T) {
	fields := make([][]byte, protocol.NumStatusFields+1)
	for i := range fields {
		fields[i] = []byte("x")
	}
	_, err := protocol.ParseStatus(fields)
	var fe *protocol.FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FramingError for non-numeric field, got %v", err)
	}
}
