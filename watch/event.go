// Package watch provides a polling filesystem change notifier.
//
// A Dir observes creation, deletion and modification of the entries of one
// directory; a File narrows that to a single filename. Delivery is strictly
// pull: nothing happens until the caller invokes PollEvent, and PollEvent
// never blocks. The caller's own loop supplies the cadence.
package watch

// EventType classifies a filesystem change.
type EventType int

const (
	// DirGone reports that the watched directory itself is gone:
	// deleted, unmounted, or the native registration was invalidated.
	DirGone EventType = iota
	Created
	Deleted
	Modified
)

var typestr = [...]string{
	DirGone:  "DIRGONE",
	Created:  "CREATE",
	Deleted:  "DELETE",
	Modified: "MODIFY",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(typestr) {
		return "UNKNOWN"
	}
	return typestr[t]
}

// Event is one observed filesystem change. Name is the affected entry name
// within the watched directory; it is empty for DirGone.
type Event struct {
	Type EventType
	Name string
}
