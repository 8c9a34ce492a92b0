package prometheus

import (
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/metrics"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func Test_Client_Counter(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg).WithTags(metrics.Tags{"backend": "sqlite"})

	c.Counter("tasks.task.assigned", metrics.Tags{"assignment": "role"}, 1)
	c.Counter("tasks.task.assigned", metrics.Tags{"assignment": "role"}, 2)
	c.Counter("tasks.task.assigned", metrics.Tags{"assignment": "user"}, 1)

	count, err := testutil.GatherAndCount(reg, "tasks_task_assigned_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	vec := c.(*Client).s.counters["tasks_task_assigned_total"]
	require.Equal(t, float64(3), testutil.ToFloat64(vec.With(promclient.Labels{"backend": "sqlite", "assignment": "role"})))
}

func Test_Client_DropsUnknownTags(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg)

	c.Gauge("tasks.roles.cache.size", metrics.Tags{}, 3)
	c.Gauge("tasks.roles.cache.size", metrics.Tags{"extra": "x"}, 5)

	require.Equal(t, float64(5), testutil.ToFloat64(c.s.gauges["tasks_roles_cache_size"]))
}

func Test_Client_Timing(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg)

	c.Timing("tasks.operation.latency", metrics.Tags{"operation": "GetWorkflowTask"}, 250*time.Millisecond)
	c.Distribution("tasks.page.size", metrics.Tags{}, 4)

	count, err := testutil.GatherAndCount(reg, "tasks_operation_latency_seconds", "tasks_page_size")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func Test_Client_SharesCollectorsAcrossClients(t *testing.T) {
	reg := promclient.NewRegistry()

	New(reg).Counter("tasks.session.created", metrics.Tags{}, 1)
	New(reg).Counter("tasks.session.created", metrics.Tags{}, 1)

	count, err := testutil.GatherAndCount(reg, "tasks_session_created_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
