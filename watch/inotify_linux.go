package watch

import (
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Flag vocabulary of the kernel facility. A single notification can set
// several bits; classification picks the most significant category first
// (destruction > creation > deletion > modification).
const (
	deadMask   = unix.IN_IGNORED | unix.IN_Q_OVERFLOW | unix.IN_UNMOUNT
	createMask = unix.IN_CREATE | unix.IN_MOVED_TO
	deleteMask = unix.IN_MOVED_FROM | unix.IN_DELETE
	modifyMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE
	watchMask  = createMask | deleteMask | modifyMask
)

type inotifyReg struct {
	wd    int32
	queue []Event
}

// InotifyPool is the native Pool backend on Linux. One inotify instance
// serves all registrations; watch descriptors are demultiplexed to logical
// registration IDs so that a descriptor number reused by the kernel can
// never reach a stale queue.
type InotifyPool struct {
	fd  int
	buf []byte

	nextID ID
	regs   map[ID]*inotifyReg
	byWd   map[int32][]ID
}

var _ Pool = (*InotifyPool)(nil)

// NewInotifyPool opens a nonblocking inotify instance.
func NewInotifyPool() (*InotifyPool, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK)
	if err != nil {
		return nil, xerrors.Errorf("inotify_init1: %w", err)
	}
	return &InotifyPool{
		fd:   fd,
		buf:  make([]byte, 4096),
		regs: make(map[ID]*inotifyReg),
		byWd: make(map[int32][]ID),
	}, nil
}

// Create registers interest in changes under path.
func (p *InotifyPool) Create(path string) (Registration, error) {
	wd, err := unix.InotifyAddWatch(p.fd, path, watchMask)
	if err != nil {
		return Registration{ID: NoID}, xerrors.Errorf("inotify_add_watch %q: %w", path, err)
	}
	id := p.nextID
	p.nextID++
	r := &inotifyReg{wd: int32(wd)}
	p.regs[id] = r
	p.byWd[r.wd] = append(p.byWd[r.wd], id)
	return Registration{ID: id, Ticket: len(r.queue)}, nil
}

// Destroy unregisters and evicts the registration's queue. The kernel
// watch is removed only when the last registration sharing the descriptor
// goes away; removal errors (descriptor already released) are ignored.
func (p *InotifyPool) Destroy(id ID) {
	r, ok := p.regs[id]
	if !ok {
		return
	}
	delete(p.regs, id)

	ids := p.byWd[r.wd]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) > 0 {
		p.byWd[r.wd] = ids
		return
	}
	delete(p.byWd, r.wd)
	_, _ = unix.InotifyRmWatch(p.fd, uint32(r.wd))
}

// Update performs one bounded nonblocking read and classifies every
// complete notification in it. Nothing pending (EAGAIN) is not an error.
func (p *InotifyPool) Update() error {
	if p.fd < 0 {
		return xerrors.New("inotify instance closed")
	}
	n, err := unix.Read(p.fd, p.buf)
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		return xerrors.Errorf("read inotify: %w", err)
	}

	offset := 0
	for offset+unix.SizeofInotifyEvent <= n {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&p.buf[offset]))
		namelen := int(raw.Len)
		name := ""
		if namelen > 0 {
			b := p.buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+namelen]
			name = strings.TrimRight(string(b), "\x00")
		}
		p.dispatch(raw.Wd, raw.Mask, name)
		offset += unix.SizeofInotifyEvent + namelen
	}
	return nil
}

// dispatch classifies one raw notification and appends the result to every
// registration it belongs to.
func (p *InotifyPool) dispatch(wd int32, mask uint32, name string) {
	if mask&deadMask != 0 {
		if mask&unix.IN_Q_OVERFLOW != 0 {
			// Overflow arrives with wd -1: any queue may have lost
			// notifications, so every registration must recreate.
			for _, r := range p.regs {
				r.queue = append(r.queue, Event{Type: DirGone})
			}
			return
		}
		for _, id := range p.byWd[wd] {
			r := p.regs[id]
			r.queue = append(r.queue, Event{Type: DirGone})
		}
		// The kernel has released this descriptor; drop the mapping so a
		// reused number cannot reach these registrations.
		delete(p.byWd, wd)
		return
	}

	var t EventType
	switch {
	case mask&createMask != 0:
		t = Created
	case mask&deleteMask != 0:
		t = Deleted
	case mask&modifyMask != 0:
		t = Modified
	default:
		return
	}
	for _, id := range p.byWd[wd] {
		r := p.regs[id]
		r.queue = append(r.queue, Event{Type: t, Name: name})
	}
}

// Events returns the accumulated queue for a registration.
func (p *InotifyPool) Events(id ID) []Event {
	if r, ok := p.regs[id]; ok {
		return r.queue
	}
	return nil
}

// Close releases the inotify instance.
func (p *InotifyPool) Close() error {
	if p.fd < 0 {
		return nil
	}
	fd := p.fd
	p.fd = -1
	if err := unix.Close(fd); err != nil {
		return xerrors.Errorf("close inotify: %w", err)
	}
	return nil
}
