package netsend

// Observer receives bridge telemetry. Send outcomes, drop reports and loop
// state changes are delivered on the event loop goroutine; connect outcomes on
// the goroutine that called Connect. No method is ever called from the render
// path, so implementations may allocate and take locks, but must not block for
// long: they delay the next datagram.
type Observer interface {
	// DatagramSent is called after a datagram of n bytes was written.
	DatagramSent(n int)

	// SendFailed is called for every datagram that could not be written.
	SendFailed(err *SendError)

	// BlocksDropped reports render blocks that were not transmitted because
	// no transfer buffer or queue slot was free. n is the count since the
	// previous report.
	BlocksDropped(n uint64)

	// LoopStateChanged is called on every event loop transition.
	LoopStateChanged(state string)

	// ConnectAttempted is called after every Connect with its outcome.
	ConnectAttempted(err error)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) DatagramSent(int) {}
func (NopObserver) SendFailed(*SendError) {}
func (NopObserver) BlocksDropped(uint64) {}
func (NopObserver) LoopStateChanged(string) {}
func (NopObserver) ConnectAttempted(error) {}

var _ Observer = NopObserver{}
