package cachegate

// Op names a cache operation in errors, logs and hooks.
type Op string

const (
	OpAdd      Op = "add"
	OpSet      Op = "set"
	OpReplace  Op = "replace"
	OpIncr     Op = "incr"
	OpDecr     Op = "decr"
	OpGet      Op = "get"
	OpGetMulti Op = "get_multi"
	OpDelete   Op = "delete"
	OpClear    Op = "clear"
)

// State is the lifecycle position of a Cache.
type State int32

const (
	Uninitialized State = iota
	Ready
	Reinitializing
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Reinitializing:
		return "reinitializing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
