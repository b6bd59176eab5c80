package protocol

import (
	"fmt"
	"strconv"
)

// Status is the consumer-side view of one response record, with the integer
// fields parsed. statusd-dash and tests use it; the daemon itself only ever
// appends fields in order and never materializes a Status.
type Status struct {
	ID        string `json:"id"`
	Workdir   string `json:"workdir"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch"`
	Upstream  string `json:"upstream"`
	RemoteURL string `json:"remote_url"`
	State     string `json:"state"`
	Staged    int    `json:"staged"`
	Unstaged  int    `json:"unstaged"`
	Untracked int    `json:"untracked"`
	Ahead     int    `json:"ahead"`
	Behind    int    `json:"behind"`
	Stashes   int    `json:"stashes"`
	Tag       string `json:"tag"`
}

// ParseStatus decodes a response record as returned by Reader.ReadRecord:
// the echoed id followed by NumStatusFields fields.
func ParseStatus(fields [][]byte) (*Status, error) {
	if len(fields) != NumStatusFields+1 {
		return nil, &FramingError{
			Reason: fmt.Sprintf("want %d fields, got %d", NumStatusFields+1, len(fields)),
		}
	}
	s := &Status{
		ID:        string(fields[0]),
		Workdir:   string(fields[1]),
		Revision:  string(fields[2]),
		Branch:    string(fields[3]),
		Upstream:  string(fields[4]),
		RemoteURL: string(fields[5]),
		State:     string(fields[6]),
		Tag:       string(fields[13]),
	}
	ints := []struct {
		dst  *int
		name string
		idx  int
	}{
		{&s.Staged, "staged", 7},
		{&s.Unstaged, "unstaged", 8},
		{&s.Untracked, "untracked", 9},
		{&s.Ahead, "ahead", 10},
		{&s.Behind, "behind", 11},
		{&s.Stashes, "stashes", 12},
	}
	for _, f := range ints {
		n, err := strconv.Atoi(string(fields[f.idx]))
		if err != nil {
			return nil, &FramingError{Reason: "non-numeric " + f.name + " field", Frame: fields[f.idx]}
		}
		*f.dst = n
	}
	return s, nil
}
