package core

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Completion_Matches(t *testing.T) {
	require.True(t, CompletionAny.Matches(true))
	require.True(t, CompletionAny.Matches(false))
	require.True(t, CompletionCompleted.Matches(true))
	require.False(t, CompletionCompleted.Matches(false))
	require.False(t, CompletionPending.Matches(true))
	require.True(t, CompletionPending.Matches(false))
}

func Test_ParseCompletion(t *testing.T) {
	tests := []struct {
		in   string
		want Completion
	}{
		{"", CompletionAny},
		{"any", CompletionAny},
		{"true", CompletionCompleted},
		{"Completed", CompletionCompleted},
		{"false", CompletionPending},
		{"pending", CompletionPending},
	}

	for _, tt := range tests {
		c, err := ParseCompletion(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, c, tt.in)
	}

	_, err := ParseCompletion("maybe")
	require.Error(t, err)
}

func Test_OrderBy_Compare(t *testing.T) {
	d1 := time.Unix(10, 0)
	d2 := time.Unix(20, 0)

	tasks := []*TaskInstance{
		{ID: 1, Name: "b", DueAt: &d2, Priority: 1},
		{ID: 2, Name: "a", Priority: 2},
		{ID: 3, Name: "a", DueAt: &d1, Priority: 1},
	}

	sorted := func(ob *OrderBy) []int64 {
		s := slices.Clone(tasks)
		slices.SortFunc(s, ob.Compare)

		ids := []int64{}
		for _, t := range s {
			ids = append(ids, t.ID)
		}
		return ids
	}

	require.Equal(t, []int64{1, 2, 3}, sorted(nil))
	require.Equal(t, []int64{2, 3, 1}, sorted(NewOrderBy(OrderByName, true)))
	require.Equal(t, []int64{1, 2, 3}, sorted(NewOrderBy(OrderByName, false)))
	require.Equal(t, []int64{2, 3, 1}, sorted(NewOrderBy(OrderByDueDate, true)))
	require.Equal(t, []int64{2, 1, 3}, sorted(NewOrderBy(OrderByPriority, false)))
}

func Test_ParseOrderBy(t *testing.T) {
	ob, err := ParseOrderBy("due_date desc, name")
	require.NoError(t, err)
	require.Equal(t, &OrderBy{Columns: []OrderByColumn{
		{Field: OrderByDueDate, Ascending: false},
		{Field: OrderByName, Ascending: true},
	}}, ob)

	ob, err = ParseOrderBy("")
	require.NoError(t, err)
	require.Nil(t, ob)

	_, err = ParseOrderBy("color")
	require.Error(t, err)

	_, err = ParseOrderBy("name sideways")
	require.Error(t, err)
}

func Test_Value_JSON(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	vars := Variables{
		"s": StringValue("text"),
		"i": IntValue(42),
		"f": FloatValue(1.5),
		"b": BoolValue(true),
		"t": TimeValue(now),
	}

	b, err := json.Marshal(vars)
	require.NoError(t, err)

	var out Variables
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, vars, out)

	i, ok := out["i"].AsInt()
	require.True(t, ok)
	require.Equal(t, int64(42), i)

	_, ok = out["i"].AsString()
	require.False(t, ok)
}

func Test_Value_UnmarshalUnknownKind(t *testing.T) {
	var v Value
	require.Error(t, json.Unmarshal([]byte(`{"kind":"blob","value":"x"}`), &v))
}

func Test_VariablesFrom(t *testing.T) {
	vars, err := VariablesFrom(map[string]any{
		"amount":   250,
		"approved": false,
		"reason":   "budget",
	})
	require.NoError(t, err)
	require.Equal(t, Variables{
		"amount":   IntValue(250),
		"approved": BoolValue(false),
		"reason":   StringValue("budget"),
	}, vars)

	_, err = VariablesFrom(map[string]any{"x": []int{1}})
	require.Error(t, err)

	vars, err = VariablesFrom(nil)
	require.NoError(t, err)
	require.Nil(t, vars)
}
