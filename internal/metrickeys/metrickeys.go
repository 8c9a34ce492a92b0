package metrickeys

const (
	Prefix = "tasks."

	// Sessions
	SessionCreated = Prefix + "session.created"

	SessionOperationLatency = Prefix + "session.operation.latency"
	SessionOperationFailed  = Prefix + "session.operation.failed"
	SessionConflict         = Prefix + "session.conflict"

	// Manager operations
	OperationCompleted = Prefix + "operation.completed"
	OperationFailed    = Prefix + "operation.failed"
	OperationLatency   = Prefix + "operation.latency"

	TaskAssigned  = Prefix + "task.assigned"
	TaskCompleted = Prefix + "task.completed"

	// Role membership cache
	RoleCacheHit      = Prefix + "roles.cache.hit"
	RoleCacheMiss     = Prefix + "roles.cache.miss"
	RoleCacheEviction = Prefix + "roles.cache.eviction"
	RoleCacheSize     = Prefix + "roles.cache.size"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	// Operation of the task manager
	Operation = "operation"

	// Kind of assignment, "role" or "user"
	AssignmentKind = "assignment"

	// Reason for evicting an entry from the role cache
	EvictionReason = "reason"
)
