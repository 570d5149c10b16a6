package checklist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testList() *List {
	return New([]Item{
		{ID: "req-1", Label: "Required 1", Required: true, Category: CategoryTechnical},
		{ID: "req-2", Label: "Required 2", Required: true, Category: CategoryClinical},
		{ID: "req-3", Label: "Required 3", Required: true, Category: CategorySafety},
		{ID: "opt-1", Label: "Optional 1", Category: CategoryTechnical},
		{ID: "opt-2", Label: "Optional 2", Category: CategoryPreparation},
	})
}

func TestGateFlipsOnLastRequiredItem(t *testing.T) {
	list := testList()
	require.False(t, list.CanProceed())

	require.NoError(t, list.Toggle("req-1"))
	require.False(t, list.CanProceed())

	require.NoError(t, list.Toggle("req-2"))
	require.False(t, list.CanProceed())

	require.NoError(t, list.Toggle("req-3"))
	require.True(t, list.CanProceed())

	// Unchecking any required item closes the gate again.
	require.NoError(t, list.Toggle("req-2"))
	require.False(t, list.CanProceed())
}

func TestOptionalItemsNeverBlock(t *testing.T) {
	list := testList()
	for _, id := range []string{"req-1", "req-2", "req-3"} {
		require.NoError(t, list.Toggle(id))
	}
	require.True(t, list.CanProceed())

	require.NoError(t, list.Toggle("opt-1"))
	require.True(t, list.CanProceed())
	require.NoError(t, list.Toggle("opt-1"))
	require.NoError(t, list.Toggle("opt-2"))
	require.True(t, list.CanProceed())
}

func TestStatsRecomputedPerCall(t *testing.T) {
	list := testList()

	stats := list.Stats()
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 0, stats.Completed)
	require.Equal(t, 3, stats.RequiredTotal)
	require.Equal(t, 0, stats.RequiredCompleted)
	require.Equal(t, 0, stats.Percentage)

	require.NoError(t, list.Toggle("req-1"))
	require.NoError(t, list.Toggle("opt-1"))

	stats = list.Stats()
	require.Equal(t, 2, stats.Completed)
	require.Equal(t, 1, stats.RequiredCompleted)
	require.Equal(t, 40, stats.Percentage)
	require.Equal(t, 33, stats.RequiredPercentage)
}

func TestToggleUnknownItem(t *testing.T) {
	list := testList()
	require.Error(t, list.Toggle("no-such-item"))
}

func TestDefaultChecklist(t *testing.T) {
	list := Default()
	stats := list.Stats()
	require.Equal(t, 14, stats.Total)
	require.Equal(t, 11, stats.RequiredTotal)
	require.False(t, list.CanProceed())
}
