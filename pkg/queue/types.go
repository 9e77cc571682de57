package queue

// DefaultQueueName is the logical queue used when no queue is specified
const DefaultQueueName = "default"

// DefaultConfigKey is the registry key used when no config is specified
const DefaultConfigKey = "default"

// DefaultMethod is the target method invoked when no method is specified
const DefaultMethod = "run"

// DefaultMaxRetries bounds how many times a retrying message runs
const DefaultMaxRetries = 5

// Arguments are the named job arguments. Key order does not matter,
// neither for execution nor for the content hash.
type Arguments map[string]any

// Stats is a point-in-time view of one logical queue.
type Stats struct {
	Queued    int64 `json:"queued"`
	Delayed   int64 `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Total     int64 `json:"total"`
}
