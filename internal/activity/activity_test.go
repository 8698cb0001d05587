package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestLog() *Log {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddNewestFirst(t *testing.T) {
	l := newTestLog()
	l.Info("Shopping", "first")
	l.Success("Shopping", "second")

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "second" || entries[0].Level != LevelSuccess {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Message != "first" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Errorf("expected distinct ids, got %q and %q", entries[0].ID, entries[1].ID)
	}
}

func TestAddCapsAtMaxEntries(t *testing.T) {
	l := newTestLog()
	for i := range MaxEntries + 5 {
		l.Debugf("Test", "entry %d", i)
	}

	entries := l.Entries()
	if len(entries) != MaxEntries {
		t.Fatalf("len = %d, want %d", len(entries), MaxEntries)
	}
	if entries[0].Message != fmt.Sprintf("entry %d", MaxEntries+4) {
		t.Errorf("newest = %q", entries[0].Message)
	}
	if entries[MaxEntries-1].Message != "entry 5" {
		t.Errorf("oldest kept = %q, want %q", entries[MaxEntries-1].Message, "entry 5")
	}
}

func TestEntriesSnapshotIsStable(t *testing.T) {
	l := newTestLog()
	l.Info("Test", "one")
	snap := l.Entries()
	l.Info("Test", "two")

	if len(snap) != 1 || snap[0].Message != "one" {
		t.Errorf("snapshot changed: %+v", snap)
	}
}

func TestClear(t *testing.T) {
	l := newTestLog()
	l.Info("Test", "one")
	l.Clear()

	if n := len(l.Entries()); n != 0 {
		t.Errorf("entries after clear = %d", n)
	}
	if l.Entries() == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestText(t *testing.T) {
	l := newTestLog()
	base := time.Date(2026, 3, 4, 9, 5, 6, 0, time.Local)
	calls := 0
	l.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	l.Warning("AI-Recipe", "no key")
	l.Error("AI-Categorization", "boom")

	want := "[2026-03-04 09:05:08] [ERROR] [AI-Categorization] boom\n" +
		"[2026-03-04 09:05:07] [WARNING] [AI-Recipe] no key"
	if got := l.Text(); got != want {
		t.Errorf("text =\n%s\nwant\n%s", got, want)
	}
}

func TestMirrorsToSlog(t *testing.T) {
	var buf strings.Builder
	l := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Error("Shopping", "failed to add item")

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "tag=Shopping") {
		t.Errorf("slog output = %q", out)
	}
}

func next(t *testing.T, ch <-chan []Entry) []Entry {
	t.Helper()
	select {
	case entries, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return entries
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for entries")
	}
	return nil
}

func TestSubscribe(t *testing.T) {
	l := newTestLog()
	l.Info("Test", "before")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := l.Subscribe(ctx)

	if got := next(t, ch); len(got) != 1 || got[0].Message != "before" {
		t.Fatalf("replay = %+v", got)
	}

	l.Info("Test", "after")
	if got := next(t, ch); len(got) != 2 || got[0].Message != "after" {
		t.Errorf("update = %+v", got)
	}

	l.Clear()
	if got := next(t, ch); len(got) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

func TestSubscribeCancelAndClose(t *testing.T) {
	l := newTestLog()

	ctx, cancel := context.WithCancel(context.Background())
	ch := l.Subscribe(ctx)
	next(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}

	other := l.Subscribe(context.Background())
	next(t, other)
	l.Close()
	if _, ok := <-other; ok {
		t.Error("expected closed channel after Close")
	}

	// Adding after Close only logs.
	l.Info("Test", "late")
	if _, ok := <-l.Subscribe(context.Background()); ok {
		t.Error("expected subscribe on closed log to return a closed channel")
	}
}
