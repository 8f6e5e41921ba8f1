package watch

// ID identifies one registration within a pool. IDs are issued
// monotonically and never reused, even when the OS reuses the underlying
// native handle number.
type ID int64

// NoID is the "not registered" sentinel. Destroying it is a no-op.
const NoID ID = -1

// Registration is the result of Pool.Create. Ticket is the length of the
// registration's queue at creation time; a consumer starting there never
// replays history accumulated before the registration existed.
type Registration struct {
	ID     ID
	Ticket int
}

// Pool is the backend interface over one native notification channel.
// It multiplexes any number of registrations over that channel and keeps an
// append-only event queue per registration.
//
// A pool instance is meant to be driven by one goroutine at a time; it does
// no internal locking. Callers needing concurrent use must synchronize
// externally or create a pool per goroutine.
type Pool interface {

	// Create registers interest in creation/deletion/modification events
	// for path. Native failures (missing path, permissions, exhaustion)
	// are returned wrapped; the caller is expected to retry later.
	Create(path string) (Registration, error)

	// Destroy unregisters. Unknown, already-destroyed and NoID values are
	// tolerated silently; the registration's queue is evicted.
	Destroy(id ID)

	// Update drains currently available native notifications without
	// blocking, classifying each into the owning registrations' queues.
	// Nothing pending is not an error; a non-nil return means the native
	// channel itself has faulted.
	Update() error

	// Events returns the full accumulated queue for a registration.
	// Consumers index into it with their own cursor; the pool does not
	// track read positions.
	Events(id ID) []Event

	// Close releases the native channel. All registrations become
	// unusable; subsequent Update calls report a fault.
	Close() error
}
