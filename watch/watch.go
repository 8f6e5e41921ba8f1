package watch

// Dir watches the entries of one directory through a Pool.
//
// The registration is recreated lazily: when it dies (creation failed, or
// the directory itself went away), the next PollEvent retries. The caller's
// polling cadence is the retry cadence; there is no background work.
type Dir struct {
	path string
	pool Pool

	id     ID
	ticket int
	dead   bool
}

// NewDir starts watching path. A failed registration is not an error: the
// watch starts dead and every PollEvent retries until the path becomes
// watchable.
func NewDir(path string, pool Pool) *Dir {
	d := &Dir{
		path: path,
		pool: pool,
		id:   NoID,
		dead: true,
	}
	d.recreate()
	return d
}

func (d *Dir) recreate() {
	d.pool.Destroy(d.id)
	d.id = NoID
	d.dead = true

	reg, err := d.pool.Create(d.path)
	if err != nil {
		return
	}
	d.id = reg.ID
	d.ticket = reg.Ticket
	d.dead = false
}

// PollEvent returns the next unconsumed event for the directory, or false
// when none is available right now. It never blocks.
//
// A returned DirGone event marks the watch dead; the next call attempts to
// register the path anew, resuming with whatever accumulates from then on.
func (d *Dir) PollEvent() (Event, bool) {
	if d.dead {
		d.recreate()
	}
	if d.dead {
		return Event{}, false
	}

	// A channel fault is indistinguishable from silence here; recovery
	// happens through the DirGone / recreate path like any other death.
	_ = d.pool.Update()

	queue := d.pool.Events(d.id)
	if d.ticket >= len(queue) {
		return Event{}, false
	}
	ev := queue[d.ticket]
	d.ticket++

	if ev.Type == DirGone {
		d.dead = true
	}
	return ev, true
}

// Dead reports whether the watch currently holds a valid registration.
func (d *Dir) Dead() bool {
	return d.dead
}

// Path returns the watched directory path.
func (d *Dir) Path() string {
	return d.path
}

// Close releases the registration. Safe to call repeatedly, and on a watch
// that never managed to register.
func (d *Dir) Close() {
	d.pool.Destroy(d.id)
	d.id = NoID
	d.dead = true
}
