package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatasetNameJoinsStepAndOutput(t *testing.T) {
	require.Equal(t, "A__raw", DatasetName("A", "raw"))
}

func TestCatalogPutThenGetRoundTrips(t *testing.T) {
	c := New()
	require.NoError(t, c.Put(DatasetName("A", "raw"), 42))

	v, ok := c.Get(DatasetName("A", "raw"))
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.True(t, c.Has(DatasetName("A", "raw")))
}

func TestCatalogGetMissingKeyReportsFalse(t *testing.T) {
	c := New()
	_, ok := c.Get("missing__key")
	require.False(t, ok)
	require.False(t, c.Has("missing__key"))
}

func TestCatalogRejectsDuplicateWriteOfSameKey(t *testing.T) {
	c := New()
	require.NoError(t, c.Put("A__raw", 1))
	err := c.Put("A__raw", 2)
	require.Error(t, err)

	v, _ := c.Get("A__raw")
	require.Equal(t, 1, v, "the first write must not be clobbered by the rejected second write")
}

func TestCatalogConcurrentWritesToDistinctKeysAllSucceed(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Put(DatasetName("step", string(rune('A'+i))), i)
		}()
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		v, ok := c.Get(DatasetName("step", string(rune('A'+i))))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestLineageRecordPreservesCompletionOrder(t *testing.T) {
	l := NewLineage()
	l.Record(NodeMetrics{Step: "B", Status: "success"})
	l.Record(NodeMetrics{Step: "A", Status: "success"})

	all := l.All()
	require.Len(t, all, 2)
	require.Equal(t, "B", all[0].Step)
	require.Equal(t, "A", all[1].Step)
}

func TestLineageRecordOverwritesOnRetryWithoutDuplicatingOrder(t *testing.T) {
	l := NewLineage()
	l.Record(NodeMetrics{Step: "A", Status: "failed"})
	l.Record(NodeMetrics{Step: "A", Status: "success"})

	all := l.All()
	require.Len(t, all, 1)
	require.Equal(t, "success", all[0].Status)

	m, ok := l.Get("A")
	require.True(t, ok)
	require.Equal(t, "success", m.Status)
}

func TestLineageGetUnknownStepReportsFalse(t *testing.T) {
	l := NewLineage()
	_, ok := l.Get("nope")
	require.False(t, ok)
}
