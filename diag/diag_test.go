package diag

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend/sqlite"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/taskmanager"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, []int64) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	b := sqlite.NewInMemoryBackend()
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	ctx := context.Background()
	node := &core.TaskNode{
		Name:        "review",
		Transitions: []core.Transition{{Name: "approve"}, {Name: "reject"}},
	}

	s, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	ids := []int64{}
	for i, actor := range []string{"1", "1", ""} {
		ti := core.NewTaskInstance(int64(10+i%2), "review", node, time.Now())
		ti.ActorID = actor
		if actor == "" {
			ti.SetPooledActors("100")
		}

		require.NoError(t, s.SaveTaskInstance(ctx, ti))
		ids = append(ids, ti.ID)
	}
	require.NoError(t, s.Commit(ctx))

	return NewRouter(taskmanager.New(b, b), slog.Default()), ids
}

func get(t *testing.T, r http.Handler, url string, v any) int {
	t.Helper()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))

	if v != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
	}

	return w.Code
}

func Test_GetTask(t *testing.T) {
	r, ids := newTestRouter(t)

	var task taskmanager.WorkflowTask
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/"+itoa(ids[0]), &task))
	require.Equal(t, ids[0], task.ID)
	require.Equal(t, int64(1), task.AssigneeUserID)
	require.Equal(t, []string{"approve", "reject"}, task.TransitionNames)

	var e errorResponse
	require.Equal(t, http.StatusNotFound, get(t, r, "/api/tasks/4711", &e))
	require.NotEmpty(t, e.Error)

	require.Equal(t, http.StatusBadRequest, get(t, r, "/api/tasks/abc", nil))
}

func Test_ListTasks(t *testing.T) {
	r, ids := newTestRouter(t)

	var tasks []*taskmanager.WorkflowTask
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?user=1", &tasks))
	require.Len(t, tasks, 2)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?user=1&start=1&end=2", &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, ids[1], tasks[0].ID)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?role=100", &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, ids[2], tasks[0].ID)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?instance=10&order=id%20desc", &tasks))
	require.Len(t, tasks, 2)
	require.Equal(t, ids[2], tasks[0].ID)

	require.Equal(t, http.StatusBadRequest, get(t, r, "/api/tasks?user=1&role=100", nil))
	require.Equal(t, http.StatusBadRequest, get(t, r, "/api/tasks?order=color", nil))
	require.Equal(t, http.StatusBadRequest, get(t, r, "/api/tasks?completed=maybe", nil))
}

func Test_ListTasks_NormalizesIDs(t *testing.T) {
	r, ids := newTestRouter(t)

	var tasks []*taskmanager.WorkflowTask
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?user=001", &tasks))
	require.Len(t, tasks, 2)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks?role=%2B0100", &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, ids[2], tasks[0].ID)

	var c countResponse
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/count?instance=0", &c))
	require.Equal(t, 0, c.Count)
}

func Test_CountTasks(t *testing.T) {
	r, _ := newTestRouter(t)

	var c countResponse
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/count", &c))
	require.Equal(t, 3, c.Count)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/count?user=1&completed=pending", &c))
	require.Equal(t, 2, c.Count)

	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/count?user=1&completed=completed", &c))
	require.Equal(t, 0, c.Count)
}

func Test_GetTransitions(t *testing.T) {
	r, ids := newTestRouter(t)

	var tr transitionsResponse
	require.Equal(t, http.StatusOK, get(t, r, "/api/tasks/"+itoa(ids[0])+"/transitions?user=1", &tr))
	require.Equal(t, []string{"approve", "reject"}, tr.Transitions)

	require.Equal(t, http.StatusForbidden, get(t, r, "/api/tasks/"+itoa(ids[0])+"/transitions?user=2", nil))
	require.Equal(t, http.StatusBadRequest, get(t, r, "/api/tasks/"+itoa(ids[0])+"/transitions", nil))
}

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}
