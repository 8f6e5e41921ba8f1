package watch

// NewPool opens the platform-native backend.
func NewPool() (Pool, error) {
	return NewInotifyPool()
}
