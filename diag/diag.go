// Package diag serves a read-only JSON API over the tasks managed by a taskmanager.Manager.
package diag

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/taskmanager"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

type countResponse struct {
	Count int `json:"count"`
}

type transitionsResponse struct {
	TaskID      int64    `json:"task_id"`
	Transitions []string `json:"transitions"`
}

type handler struct {
	m      *taskmanager.Manager
	logger *slog.Logger
}

// NewRouter returns a gin engine serving the diagnostics API under /api.
//
//	GET /api/tasks?user=&role=&instance=&completed=&start=&end=&order=
//	GET /api/tasks/count?user=&role=&instance=&completed=
//	GET /api/tasks/:id
//	GET /api/tasks/:id/transitions?user=
func NewRouter(m *taskmanager.Manager, logger *slog.Logger) *gin.Engine {
	h := &handler{m: m, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/tasks", h.listTasks)
	api.GET("/tasks/count", h.countTasks)
	api.GET("/tasks/:id", h.getTask)
	api.GET("/tasks/:id/transitions", h.getTransitions)

	return r
}

func (h *handler) getTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	t, err := h.m.GetWorkflowTask(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *handler) getTransitions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Query("user"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "user is required"})
		return
	}

	names, err := h.m.GetNextTransitionNames(c.Request.Context(), userID, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, transitionsResponse{TaskID: id, Transitions: names})
}

func (h *handler) listTasks(c *gin.Context) {
	q, err := parseQuery(c, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	tasks, err := h.m.FindWorkflowTasks(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *handler) countTasks(c *gin.Context) {
	q, err := parseQuery(c, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	count, err := h.m.CountWorkflowTasks(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, countResponse{Count: count})
}

func (h *handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, backend.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, taskmanager.ErrNotAssignedToUser):
		status = http.StatusForbidden
	default:
		h.logger.Error("Diagnostics request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid task id %q", c.Param("id"))})
		return 0, false
	}

	return id, true
}

// parseQuery builds a task query from the request's query string. user and role are mutually
// exclusive.
func parseQuery(c *gin.Context, paginated bool) (*backend.TaskQuery, error) {
	q := &backend.TaskQuery{
		Start: core.All,
		End:   core.All,
	}

	user, role := c.Query("user"), c.Query("role")
	if user != "" && role != "" {
		return nil, errors.New("user and role cannot be combined")
	}

	if user != "" {
		id, err := strconv.ParseInt(user, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user %q", user)
		}

		q.ActorIDs = []string{strconv.FormatInt(id, 10)}
	}

	if role != "" {
		id, err := strconv.ParseInt(role, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid role %q", role)
		}

		q.ActorIDs = []string{strconv.FormatInt(id, 10)}
		q.Pooled = true
	}

	if instance := c.Query("instance"); instance != "" {
		id, err := strconv.ParseInt(instance, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid instance %q", instance)
		}

		q.WorkflowInstanceID = backend.InWorkflowInstance(id)
	}

	completion, err := core.ParseCompletion(c.Query("completed"))
	if err != nil {
		return nil, err
	}
	q.Completion = completion

	if !paginated {
		return q, nil
	}

	if q.Start, err = intQuery(c, "start", core.All); err != nil {
		return nil, err
	}

	if q.End, err = intQuery(c, "end", core.All); err != nil {
		return nil, err
	}

	if q.OrderBy, err = core.ParseOrderBy(c.Query("order")); err != nil {
		return nil, err
	}

	return q, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	s := c.Query(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}

	return v, nil
}
