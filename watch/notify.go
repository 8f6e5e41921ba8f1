package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"
)

type notifyReg struct {
	path  string
	queue []Event
}

// NotifyPool is a portable Pool backend over an fsnotify.Watcher. fsnotify
// reports events keyed by pathname rather than by registration handle, so
// the demultiplexing here goes through the cleaned directory path.
type NotifyPool struct {
	w *fsnotify.Watcher

	nextID ID
	regs   map[ID]*notifyReg
	byPath map[string][]ID
}

var _ Pool = (*NotifyPool)(nil)

// NewNotifyPool opens an fsnotify watcher as the notification channel.
func NewNotifyPool() (*NotifyPool, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("fsnotify: %w", err)
	}
	return &NotifyPool{
		w:      w,
		regs:   make(map[ID]*notifyReg),
		byPath: make(map[string][]ID),
	}, nil
}

// Create registers interest in changes under path.
func (p *NotifyPool) Create(path string) (Registration, error) {
	path = filepath.Clean(path)
	if len(p.byPath[path]) == 0 {
		if err := p.w.Add(path); err != nil {
			return Registration{ID: NoID}, xerrors.Errorf("watcher add %q: %w", path, err)
		}
	}
	id := p.nextID
	p.nextID++
	r := &notifyReg{path: path}
	p.regs[id] = r
	p.byPath[path] = append(p.byPath[path], id)
	return Registration{ID: id, Ticket: len(r.queue)}, nil
}

// Destroy unregisters and evicts the registration's queue. The underlying
// watch is removed with the last registration for the path; removal errors
// (the watch may already be gone with its directory) are ignored.
func (p *NotifyPool) Destroy(id ID) {
	r, ok := p.regs[id]
	if !ok {
		return
	}
	delete(p.regs, id)

	ids := p.byPath[r.path]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) > 0 {
		p.byPath[r.path] = ids
		return
	}
	delete(p.byPath, r.path)
	_ = p.w.Remove(r.path)
}

// Update drains whatever the watcher has delivered so far, never blocking.
func (p *NotifyPool) Update() error {
	for {
		select {
		case ev, ok := <-p.w.Events:
			if !ok {
				return xerrors.New("watcher event channel closed")
			}
			p.dispatch(ev)
		case err, ok := <-p.w.Errors:
			if !ok {
				return xerrors.New("watcher error channel closed")
			}
			if xerrors.Is(err, fsnotify.ErrEventOverflow) {
				// Any queue may have lost notifications; every
				// registration must recreate.
				for _, r := range p.regs {
					r.queue = append(r.queue, Event{Type: DirGone})
				}
				continue
			}
			return xerrors.Errorf("watcher: %w", err)
		default:
			return nil
		}
	}
}

func (p *NotifyPool) dispatch(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)

	// Removal or rename of a watched path is that watch's destruction.
	if ids := p.byPath[name]; len(ids) > 0 && (ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)) {
		for _, id := range ids {
			r := p.regs[id]
			r.queue = append(r.queue, Event{Type: DirGone})
		}
		// fsnotify has already dropped the watch; unmap the path so a
		// later event with the same name resolves as a directory entry.
		delete(p.byPath, name)
		return
	}

	ids := p.byPath[filepath.Dir(name)]
	if len(ids) == 0 {
		return
	}

	var t EventType
	switch {
	case ev.Op.Has(fsnotify.Create):
		t = Created
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		t = Deleted
	case ev.Op.Has(fsnotify.Write):
		t = Modified
	default: // Chmod etc.
		return
	}
	base := filepath.Base(name)
	for _, id := range ids {
		r := p.regs[id]
		r.queue = append(r.queue, Event{Type: t, Name: base})
	}
}

// Events returns the accumulated queue for a registration.
func (p *NotifyPool) Events(id ID) []Event {
	if r, ok := p.regs[id]; ok {
		return r.queue
	}
	return nil
}

// Close releases the fsnotify watcher.
func (p *NotifyPool) Close() error {
	return p.w.Close()
}
