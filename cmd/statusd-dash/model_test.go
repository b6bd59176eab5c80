package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"statusd/pkg/protocol"
)

var errFake = errors.New("fetch failed")

func testStatus() *protocol.Status {
	return &protocol.Status{
		ID:        "1",
		Workdir:   "/home/u/proj",
		Revision:  "0123456789abcdef0123456789abcdef01234567",
		Branch:    "main",
		Upstream:  "origin/main",
		RemoteURL: "git@example.com:u/proj.git",
		State:     protocol.StateNone,
		Untracked: protocol.FlagPresent,
		Ahead:     2,
		Stashes:   1,
		Tag:       "v1.0.0",
	}
}

func TestStatusMsgUpdatesModel(t *testing.T) {
	m := newModel("/home/u/proj", nil)

	updated, _ := m.Update(statusMsg(testStatus()))
	got := updated.(Model)

	if got.status == nil || got.status.Branch != "main" {
		t.Fatal("status not stored on model")
	}
	if got.loading {
		t.Fatal("loading not cleared after status arrived")
	}
	if got.lastUpdated.IsZero() {
		t.Fatal("lastUpdated not set")
	}
}

func TestFetchErrKeepsLastStatus(t *testing.T) {
	m := newModel("/home/u/proj", nil)
	updated, _ := m.Update(statusMsg(testStatus()))
	m = updated.(Model)

	updated, _ = m.Update(fetchErrMsg{err: errFake})
	got := updated.(Model)

	if got.status == nil {
		t.Fatal("stale status dropped on fetch error")
	}
	if got.fetchErr == nil {
		t.Fatal("fetch error not recorded")
	}
}

func TestQuitKeys(t *testing.T) {
	m := newModel(".", nil)
	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "q" {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("key %s did not produce a command", key)
		}
	}
}

func TestViewRendersFields(t *testing.T) {
	m := newModel("/home/u/proj", nil)
	updated, _ := m.Update(statusMsg(testStatus()))
	m = updated.(Model)

	out := m.View()
	for _, want := range []string{"main", "01234567", "v1.0.0", "origin/main", "↑2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef0123456789abcdef01234567") {
		t.Fatal("view shows unabbreviated revision")
	}
}

func TestViewUnbornRepository(t *testing.T) {
	m := newModel("/home/u/proj", nil)
	s := testStatus()
	s.Revision = ""
	s.Branch = ""
	s.Upstream = ""
	s.Tag = ""
	updated, _ := m.Update(statusMsg(s))
	m = updated.(Model)

	if !strings.Contains(m.View(), "no commits yet") {
		t.Fatalf("view missing unborn marker:\n%s", m.View())
	}
}

func TestFlagLabel(t *testing.T) {
	theme := DefaultTheme()
	cases := []struct {
		flag int
		want string
	}{
		{protocol.FlagAbsent, "no"},
		{protocol.FlagPresent, "yes"},
		{protocol.FlagUnknown, "unknown"},
	}
	for _, tc := range cases {
		if got := flagLabel(tc.flag, theme); !strings.Contains(got, tc.want) {
			t.Fatalf("flagLabel(%d) = %q, want %q", tc.flag, got, tc.want)
		}
	}
}

func TestAheadBehind(t *testing.T) {
	if got := aheadBehind(0, 0); got != "(up to date)" {
		t.Fatalf("aheadBehind(0,0) = %q", got)
	}
	if got := aheadBehind(2, 1); got != "(↑2 ↓1)" {
		t.Fatalf("aheadBehind(2,1) = %q", got)
	}
}
