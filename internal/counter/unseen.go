package counter

// Unseen is a per-conversation unread badge counter.
// The value is never negative; every mutation enforces the floor itself.
// Unseen is not safe for concurrent use; the owning conversation entry serializes access.
type Unseen struct {
	value int64
}

// NewUnseen creates a counter seeded with a baseline
func NewUnseen(baseline int64) *Unseen {
	u := &Unseen{}
	u.Reset(baseline)
	return u
}

// Increment adds one and returns the new value
func (u *Unseen) Increment() int64 {
	u.value++
	return u.value
}

// Decrement subtracts one, floored at zero, and returns the new value
func (u *Unseen) Decrement() int64 {
	if u.value > 0 {
		u.value--
	}
	return u.value
}

// Reset sets the counter to an externally supplied baseline (cold load)
func (u *Unseen) Reset(n int64) int64 {
	if n < 0 {
		n = 0
	}
	u.value = n
	return u.value
}

// Value returns the current count
func (u *Unseen) Value() int64 {
	return u.value
}
