package channel

// New creates a new channel with the given buffer size. Sizes below 1 are raised to 1
// so TrySend can succeed without a waiting receiver.
func New[T any](size int) Channel[T] {
	if size < 1 {
		size = 1
	}
	return NewBuffered[T](size)
}
