package numbering

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

type seqKey struct{ tenant, typ int64 }

// memoryCounter serialises increments the way the row lock does.
type memoryCounter struct {
	mu      sync.Mutex
	last    map[seqKey]int64
	numbers map[string]bool
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{last: map[seqKey]int64{}, numbers: map[string]bool{}}
}

func (c *memoryCounter) Increment(ctx context.Context, tenantID, typeID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := seqKey{tenantID, typeID}
	c.last[k]++
	return c.last[k], nil
}

func (c *memoryCounter) NumberExists(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numbers[number], nil
}

func (c *memoryCounter) NumberInUse(ctx context.Context, tenantID, typeID int64, number string) (bool, error) {
	return c.NumberExists(ctx, tenantID, typeID, number)
}

func TestAssignReversal(t *testing.T) {
	seq := NewSequencer()
	counter := newMemoryCounter()
	manual := Series{TypeID: 6, Method: MethodManual}
	ctx := context.Background()

	got, err := seq.AssignReversal(ctx, counter, 1, manual, "JV-9")
	require.NoError(t, err)
	require.Equal(t, "JV-9-R", got)

	counter.numbers["JV-9-R"] = true
	counter.numbers["JV-9-R2"] = true
	got, err = seq.AssignReversal(ctx, counter, 1, manual, "JV-9")
	require.NoError(t, err)
	require.Equal(t, "JV-9-R3", got)

	long := strings.Repeat("9", maxManualLength)
	got, err = seq.AssignReversal(ctx, counter, 1, manual, long)
	require.NoError(t, err)
	require.Equal(t, long+"-R", got)

	got, err = seq.AssignReversal(ctx, counter, 1, Series{TypeID: 1, Prefix: "PAY/", Method: MethodAutomatic}, "PAY/000004")
	require.NoError(t, err)
	require.Equal(t, "PAY/000001", got)
}

func TestAssignAutomaticFormatsPrefix(t *testing.T) {
	seq := NewSequencer()
	counter := newMemoryCounter()
	series := Series{TypeID: 1, Prefix: "SAL/", Method: MethodAutomatic}

	first, err := seq.Assign(context.Background(), counter, 1, series, "")
	require.NoError(t, err)
	require.Equal(t, "SAL/000001", first)
	second, err := seq.Assign(context.Background(), counter, 1, series, "")
	require.NoError(t, err)
	require.Equal(t, "SAL/000002", second)

	other, err := seq.Assign(context.Background(), counter, 2, series, "")
	require.NoError(t, err)
	require.Equal(t, "SAL/000001", other)
}

func TestAssignAutomaticRejectsManualNumber(t *testing.T) {
	_, err := NewSequencer().Assign(context.Background(), newMemoryCounter(), 1, Series{TypeID: 1, Method: MethodAutomatic}, "X-1")
	require.Equal(t, "manual_number_not_allowed", shared.Reason(err))
}

func TestAssignManualChecksUniqueness(t *testing.T) {
	seq := NewSequencer()
	counter := newMemoryCounter()
	counter.numbers["JV-7"] = true
	series := Series{TypeID: 6, Method: MethodManual}

	_, err := seq.Assign(context.Background(), counter, 1, series, "JV-7")
	require.Equal(t, "duplicate_voucher_number", shared.Reason(err))

	_, err = seq.Assign(context.Background(), counter, 1, series, "  ")
	require.Equal(t, "missing_voucher_number", shared.Reason(err))

	got, err := seq.Assign(context.Background(), counter, 1, series, " JV-8 ")
	require.NoError(t, err)
	require.Equal(t, "JV-8", got)
}

func TestConcurrentAssignYieldsDistinctIncreasingNumbers(t *testing.T) {
	const n = 50
	seq := NewSequencer()
	counter := newMemoryCounter()
	series := Series{TypeID: 1, Prefix: "RCT/", Method: MethodAutomatic}

	var mu sync.Mutex
	got := make([]string, 0, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			number, err := seq.Assign(context.Background(), counter, 1, series, "")
			if err != nil {
				return err
			}
			mu.Lock()
			got = append(got, number)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Strings(got)
	for i, number := range got {
		require.Equal(t, Format("RCT/", int64(i+1), 6), number)
	}
}

func TestFormat(t *testing.T) {
	require.Equal(t, "PUR/000123", Format("PUR/", 123, 6))
	require.Equal(t, "1234567", Format("", 1234567, 6))
}
