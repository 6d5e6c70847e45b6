package audit_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/store/memory"
)

func newTestRunner(t *testing.T) (*audit.Runner, *memory.Store) {
	t.Helper()
	store := memory.New()
	return audit.NewRunner(&audit.Engine{}, store, store), store
}

func TestRunner_Execute_PersistsRunAndOutputs(t *testing.T) {
	// GIVEN: A batch with one mismatch among three records
	runner, store := newTestRunner(t)
	ctx := context.Background()
	book := flatBook(t, "80", "Jane Smith", "Bob Jones")
	input := audit.Input{
		Records: []commission.TransactionRecord{
			rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.March, 1)),
			rec("rec-2", "Jane Smith", dollars(5000), dollars(1000), commission.Date(2025, time.April, 1)),
			rec("rec-3", "Bob Jones", dollars(8000), dollars(1200), commission.Date(2025, time.May, 1)),
		},
		Book: book,
	}

	// WHEN: The runner executes it
	run, report, err := runner.Execute(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, report)

	// THEN: The run record is completed with the report's totals
	assert.Equal(t, audit.RunCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Empty(t, run.Error)
	assert.Equal(t, 3, run.Totals.Records)
	assert.Equal(t, 2, run.Totals.Matches)
	assert.Equal(t, 1, run.Totals.Overpaid)

	// AND: The stored run matches what was returned
	stored, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Totals, stored.Totals)
	assert.Equal(t, audit.RunCompleted, stored.Status)

	// AND: Results and variances are retrievable under the run id
	results, err := store.ListResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	variances, err := store.ListVariances(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, variances, 3)
}

func TestRunner_Execute_FailedRunIsRecorded(t *testing.T) {
	// GIVEN: A context cancelled before execution
	runner, store := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := audit.Input{
		Records: []commission.TransactionRecord{
			rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.March, 1)),
		},
		Book: flatBook(t, "80", "Jane Smith"),
	}

	// WHEN: Execution fails
	run, _, err := runner.Execute(ctx, input)
	require.Error(t, err)
	require.NotNil(t, run)

	// THEN: The run is marked failed with the cause captured
	stored, getErr := store.GetRun(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, audit.RunFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
	require.NotNil(t, stored.CompletedAt)
}

func TestRunner_Execute_RunsAreListedInOrder(t *testing.T) {
	runner, store := newTestRunner(t)
	ctx := context.Background()
	input := audit.Input{
		Records: []commission.TransactionRecord{
			rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.March, 1)),
		},
		Book: flatBook(t, "80", "Jane Smith"),
	}

	first, _, err := runner.Execute(ctx, input)
	require.NoError(t, err)
	second, _, err := runner.Execute(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
}

func TestRunner_GetRun_Unknown(t *testing.T) {
	_, store := newTestRunner(t)

	_, err := store.GetRun(context.Background(), "AUD-nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, audit.ErrRunNotFound))
}

func TestNewRunID_Format(t *testing.T) {
	now := time.Date(2025, time.March, 15, 14, 30, 22, 0, time.UTC)
	id := audit.NewRunID(now)

	matched, err := regexp.MatchString(`^AUD-20250315-143022-[0-9a-f]{8}$`, id)
	require.NoError(t, err)
	assert.True(t, matched, "unexpected run id shape: %s", id)

	// Two ids minted at the same instant must still differ.
	assert.NotEqual(t, id, audit.NewRunID(now))
}
