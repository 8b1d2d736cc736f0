package cachegate

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The gateway calls them from worker goroutines and from callers' goroutines.
type Hooks interface {
	// A fire-and-forget operation failed in the background. The error was
	// logged and is otherwise dropped.
	FireFailed(op Op, key string, err error)

	// A safe operation hit its timeout; the in-flight request was cancelled.
	SafeTimedOut(op Op, key string)

	// A safe operation failed for any other reason.
	SafeFailed(op Op, key string, err error)

	// A stored value could not be decoded by the codec on read.
	DecodeFailed(key string, err error)

	// A new backend connection became visible (Init or Reinit).
	Reinitialized(generation uint64)

	// Stop released the backend connection.
	Stopped()
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FireFailed(Op, string, error) {}
func (NopHooks) SafeTimedOut(Op, string)      {}
func (NopHooks) SafeFailed(Op, string, error) {}
func (NopHooks) DecodeFailed(string, error)   {}
func (NopHooks) Reinitialized(uint64)         {}
func (NopHooks) Stopped()                     {}
