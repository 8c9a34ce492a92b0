package tracing

const (
	TaskID             = "task.id"
	WorkflowInstanceID = "workflow.instance_id"

	UserID     = "user.id"
	AssigneeID = "assignee.id"
	RoleID     = "role.id"

	Transition = "task.transition"
	Completion = "task.completion"

	PageStart = "page.start"
	PageEnd   = "page.end"
	Count     = "result.count"

	ErrorKind = "error.kind"
)
