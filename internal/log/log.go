package log

const (
	NamespaceKey = "tasks"

	TaskIDKey             = NamespaceKey + ".task.id"
	TaskNameKey           = NamespaceKey + ".task.name"
	WorkflowInstanceIDKey = NamespaceKey + ".workflow_instance.id"

	UserIDKey     = NamespaceKey + ".user.id"
	AssigneeIDKey = NamespaceKey + ".assignee.id"
	RoleIDKey     = NamespaceKey + ".role.id"

	TransitionKey = NamespaceKey + ".transition"
	CompletionKey = NamespaceKey + ".completion"

	SessionIDKey = NamespaceKey + ".session.id"

	StartKey = NamespaceKey + ".page.start"
	EndKey   = NamespaceKey + ".page.end"
	CountKey = NamespaceKey + ".count"

	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"
)
