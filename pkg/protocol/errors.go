package protocol

import "fmt"

// NotAccessibleError reports a directory that could not be opened: it does
// not exist, is not a directory, or permission was denied. It enables typed
// error discrimination via errors.As; requests failing with it are abandoned
// silently.
type NotAccessibleError struct {
	Path string
	Err  error
}

func (e *NotAccessibleError) Error() string {
	return fmt.Sprintf("directory %s not accessible: %v", e.Path, e.Err)
}

func (e *NotAccessibleError) Unwrap() error { return e.Err }

// NotRepositoryError reports a directory with no repository ancestor.
// Requests failing with it are abandoned silently, exactly like
// NotAccessibleError: the consumer distinguishes neither case.
type NotRepositoryError struct {
	Path string
}

func (e *NotRepositoryError) Error() string {
	return fmt.Sprintf("not a git repository: %s", e.Path)
}

// ResolutionError reports a reference or object lookup failure on an
// otherwise valid repository.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FramingError reports a malformed wire record. The reader has already
// resynchronized past the next record separator when it returns one, so the
// caller can log it and keep reading.
type FramingError struct {
	Reason string
	Frame  []byte // the discarded record, without the terminator
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("malformed request frame (%d bytes): %s", len(e.Frame), e.Reason)
}
