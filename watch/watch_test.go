package watch_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"dirwatch/watch"
)

const (
	eventWaitTimeout = time.Second
	pollInterval     = time.Second / 100
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		_, f, l, _ := runtime.Caller(1)
		t.Fatalf("%v:%v: %v", f, l, err)
	}
}

type poller interface {
	PollEvent() (watch.Event, bool)
}

func mustPool(t *testing.T, newPool func() (watch.Pool, error)) watch.Pool {
	t.Helper()
	p, err := newPool()
	must(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// waitEvent re-polls until the wanted event arrives, draining and logging
// everything else on the way.
func waitEvent(t *testing.T, w poller, typ watch.EventType, name string) {
	t.Helper()
	deadline := time.Now().Add(eventWaitTimeout)
	for {
		if ev, ok := w.PollEvent(); ok {
			t.Logf("event: %v %q", ev.Type, ev.Name)
			if ev.Type == typ && ev.Name == name {
				return
			}
			continue
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout: waiting %v for %q", typ, name)
		}
		time.Sleep(pollInterval)
	}
}

func waitNoEvent(t *testing.T, w poller) {
	t.Helper()
	deadline := time.Now().Add(eventWaitTimeout / 2)
	for time.Now().Before(deadline) {
		if ev, ok := w.PollEvent(); ok {
			t.Fatalf("unexpected event: %v %q", ev.Type, ev.Name)
		}
		time.Sleep(pollInterval)
	}
}

// drain consumes events until the watch stays quiet for a moment.
func drain(w poller) {
	deadline := time.Now().Add(eventWaitTimeout / 4)
	for time.Now().Before(deadline) {
		if _, ok := w.PollEvent(); ok {
			deadline = time.Now().Add(eventWaitTimeout / 4)
			continue
		}
		time.Sleep(pollInterval)
	}
}

func testDirectory(t *testing.T, newPool func() (watch.Pool, error)) {
	t.Run("Directory", func(t *testing.T) {
		pool := mustPool(t, newPool)
		dir := t.TempDir()

		w := watch.NewDir(dir, pool)
		defer w.Close()
		if w.Dead() {
			t.Fatalf("watch on %q must be alive", dir)
		}
		if w.Path() != dir {
			t.Fatalf("Path: %q, wants %q", w.Path(), dir)
		}

		t.Log("create file")
		fname := filepath.Join(dir, "a.txt")
		fp, err := os.Create(fname)
		must(t, err)
		waitEvent(t, w, watch.Created, "a.txt")

		t.Log("write file")
		_, err = fp.Write([]byte("a"))
		must(t, err)
		must(t, fp.Close())
		waitEvent(t, w, watch.Modified, "a.txt")
		drain(w)

		t.Log("remove file")
		must(t, os.Remove(fname))
		waitEvent(t, w, watch.Deleted, "a.txt")

		t.Log("rename file")
		must(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0644))
		drain(w)
		must(t, os.Rename(filepath.Join(dir, "b.txt"), filepath.Join(dir, "c.txt")))
		waitEvent(t, w, watch.Deleted, "b.txt")
		waitEvent(t, w, watch.Created, "c.txt")

		t.Log("close watch twice")
		w.Close()
		w.Close()
	})
}

func testTicketOrder(t *testing.T, newPool func() (watch.Pool, error)) {
	t.Run("TicketOrder", func(t *testing.T) {
		pool := mustPool(t, newPool)
		dir := t.TempDir()

		w := watch.NewDir(dir, pool)
		defer w.Close()

		// mkdir produces exactly one notification per entry.
		names := []string{"d1", "d2", "d3"}
		for _, n := range names {
			must(t, os.Mkdir(filepath.Join(dir, n), 0755))
		}

		var got []string
		deadline := time.Now().Add(eventWaitTimeout)
		for len(got) < len(names) {
			if ev, ok := w.PollEvent(); ok {
				if ev.Type != watch.Created {
					t.Fatalf("unexpected event: %v %q", ev.Type, ev.Name)
				}
				got = append(got, ev.Name)
				continue
			}
			if time.Now().After(deadline) {
				t.Fatalf("timeout: got %q, wants %q", got, names)
			}
			time.Sleep(pollInterval)
		}
		for i, n := range names {
			if got[i] != n {
				t.Fatalf("order: %q, wants %q", got, names)
			}
		}
		waitNoEvent(t, w)
	})
}

func testDestroyedDirectory(t *testing.T, newPool func() (watch.Pool, error)) {
	t.Run("DestroyedDirectory", func(t *testing.T) {
		pool := mustPool(t, newPool)
		dir := filepath.Join(t.TempDir(), "d")
		must(t, os.Mkdir(dir, 0755))

		w := watch.NewDir(dir, pool)
		defer w.Close()
		if w.Dead() {
			t.Fatalf("watch on %q must be alive", dir)
		}

		t.Log("remove watched dir")
		must(t, os.Remove(dir))
		waitEvent(t, w, watch.DirGone, "")
		if !w.Dead() {
			t.Fatalf("watch must be dead after %v", watch.DirGone)
		}

		t.Log("poll while dir is absent")
		if ev, ok := w.PollEvent(); ok {
			t.Fatalf("unexpected event: %v %q", ev.Type, ev.Name)
		}
		if !w.Dead() {
			t.Fatalf("watch must stay dead while dir is absent")
		}

		t.Log("recreate dir")
		must(t, os.Mkdir(dir, 0755))
		deadline := time.Now().Add(eventWaitTimeout)
		for w.Dead() {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: watch not recreated")
			}
			w.PollEvent()
			time.Sleep(pollInterval)
		}

		t.Log("create file in recreated dir")
		must(t, os.WriteFile(filepath.Join(dir, "back.txt"), []byte("x"), 0644))
		waitEvent(t, w, watch.Created, "back.txt")
	})
}

func testMissingPath(t *testing.T, newPool func() (watch.Pool, error)) {
	t.Run("MissingPath", func(t *testing.T) {
		pool := mustPool(t, newPool)
		dir := filepath.Join(t.TempDir(), "nosuchdir")

		w := watch.NewDir(dir, pool)
		if !w.Dead() {
			t.Fatalf("watch on missing %q must be dead", dir)
		}
		for i := 0; i < 3; i++ {
			if ev, ok := w.PollEvent(); ok {
				t.Fatalf("unexpected event: %v %q", ev.Type, ev.Name)
			}
		}

		t.Log("close unregistered watch twice")
		w.Close()
		w.Close()
	})
}
