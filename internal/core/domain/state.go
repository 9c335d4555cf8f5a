package domain

// RequestState identifies a stage of the answer request state machine.
// For a single request the stage order is strictly CacheCheck, Retrieving,
// PromptBuilding, Generating, Caching, Completed, with an error path from
// any state to Failed. The only permitted short-circuit is a cache hit
// jumping from CacheCheck straight to Completed.
type RequestState int

// Request states in execution order.
const (
	StateCacheCheck RequestState = iota
	StateRetrieving
	StatePromptBuilding
	StateGenerating
	StateCaching
	StateCompleted
	StateFailed
)

// String returns the state name for logging.
func (s RequestState) String() string {
	switch s {
	case StateCacheCheck:
		return "cache_check"
	case StateRetrieving:
		return "retrieving"
	case StatePromptBuilding:
		return "prompt_building"
	case StateGenerating:
		return "generating"
	case StateCaching:
		return "caching"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the request.
func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
