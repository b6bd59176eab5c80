// Package protocol defines the statusd wire format and the typed errors
// shared by the daemon, the repository cache, and the CLI tools.
//
// Requests and responses are framed with two ASCII control bytes: fields
// within a record are separated by the unit separator (0x1F) and records are
// terminated by the record separator (0x1E). Neither byte appears in file
// paths or request ids, so the framing is self-delimiting and a reader can
// resynchronize after a malformed record by discarding bytes through the
// next record separator.
package protocol

// Framing bytes.
const (
	FieldSep  byte = 0x1F // ASCII unit separator, between fields
	RecordSep byte = 0x1E // ASCII record separator, after each record
)

// Tri-state values for the staged/unstaged/untracked response fields.
// Unknown means the check was deliberately skipped because the index
// exceeded the configured size threshold, not that it failed.
const (
	FlagUnknown = -1
	FlagAbsent  = 0
	FlagPresent = 1
)

// NumStatusFields is the number of response fields following the echoed
// request id. The field order is fixed; see ResponseWriter.
const NumStatusFields = 13

// StateNone is the repository state reported when no merge, rebase,
// cherry-pick, revert, bisect or mailbox-apply operation is in progress.
const StateNone = "none"

// StatusdDir is the per-user state directory name under $HOME.
const StatusdDir = ".statusd"
