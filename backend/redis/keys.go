package redis

import (
	"fmt"
	"strings"
)

type keys struct {
	// Ensure prefix ends with `:`
	prefix string
}

func newKeys(prefix string) *keys {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &keys{prefix: prefix}
}

// taskIDSequence returns the key of the counter handing out task instance ids
func (k *keys) taskIDSequence() string {
	return k.prefix + "task-id"
}

// taskKey returns the key holding the serialized task instance
func (k *keys) taskKey(id int64) string {
	return fmt.Sprintf("%vtask:%v", k.prefix, id)
}

// tasks returns the key for the ZSET that contains all task instance ids, scored by id
func (k *keys) tasks() string {
	return k.prefix + "tasks"
}

// tasksByInstance returns the key for the SET of task ids belonging to a workflow instance
func (k *keys) tasksByInstance(workflowInstanceID int64) string {
	return fmt.Sprintf("%vtasks-by-instance:%v", k.prefix, workflowInstanceID)
}

// tasksByActor returns the key for the SET of task ids directly assigned to an actor
func (k *keys) tasksByActor(actorID string) string {
	return fmt.Sprintf("%vtasks-by-actor:%v", k.prefix, actorID)
}

// tasksByPooledActor returns the key for the SET of task ids pooled to an actor
func (k *keys) tasksByPooledActor(actorID string) string {
	return fmt.Sprintf("%vtasks-by-pooled-actor:%v", k.prefix, actorID)
}

func (k *keys) userRoles(userID int64) string {
	return fmt.Sprintf("%vuser-roles:%v", k.prefix, userID)
}
