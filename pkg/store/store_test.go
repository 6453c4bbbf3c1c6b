package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func record(seq, conditionType string, firstSeen time.Time) *models.AlarmRecord {
	rec := &models.AlarmRecord{
		FirstSeen: firstSeen,
		LastSeen:  firstSeen,
	}
	rec.SequenceNum = seq
	rec.ConditionType = conditionType

	return rec
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	records := map[string]*models.AlarmRecord{
		"1": record("1", "ont-missing", now),
		"2": record("2", "ont-dying-gasp", now),
	}

	require.NoError(t, s.SaveSnapshot(ctx, records, nil))

	loaded, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "ont-missing", loaded["1"].ConditionType)
	assert.True(t, loaded["1"].FirstSeen.Equal(now))
}

func TestSaveSnapshotUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	later := first.Add(90 * time.Second)

	require.NoError(t, s.SaveSnapshot(ctx, map[string]*models.AlarmRecord{
		"1": record("1", "ont-missing", first),
		"2": record("2", "ont-missing", first),
	}, nil))

	// Next cycle: alarm 1 cleared, alarm 2 persists, alarm 3 is new.
	updated := record("2", "ont-missing", first)
	updated.LastSeen = later

	require.NoError(t, s.SaveSnapshot(ctx, map[string]*models.AlarmRecord{
		"2": updated,
		"3": record("3", "ont-eth-down", later),
	}, []string{"1"}))

	loaded, err := s.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.NotContains(t, loaded, "1")
	assert.True(t, loaded["2"].FirstSeen.Equal(first))
	assert.True(t, loaded["2"].LastSeen.Equal(later))
	assert.Contains(t, loaded, "3")
}

func TestAlertLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	alert := &models.Alert{
		ID:           "alert-1",
		RuleName:     "fiber_cut",
		TargetKey:    "1/2/3",
		Severity:     models.AlertSeverityCritical,
		Message:      "4 ONTs missing on PON 1/2/3. Possible fiber cut.",
		AffectedOnts: []string{"sonar_item_1", "sonar_item_2"},
		CreatedAt:    created,
	}

	require.NoError(t, s.InsertAlert(ctx, alert))

	active, err := s.LoadActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alert-1", active[0].ID)
	assert.Equal(t, models.AlertSeverityCritical, active[0].Severity)
	assert.Equal(t, []string{"sonar_item_1", "sonar_item_2"}, active[0].AffectedOnts)
	assert.Nil(t, active[0].ResolvedAt)

	resolvedAt := created.Add(20 * time.Minute)
	alert.ResolvedAt = &resolvedAt
	require.NoError(t, s.ResolveAlert(ctx, alert))

	active, err = s.LoadActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	log, err := s.ListAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.NotNil(t, log[0].ResolvedAt)
	assert.True(t, log[0].ResolvedAt.Equal(resolvedAt))
}

func TestListAlertsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertAlert(ctx, &models.Alert{
			ID:           id,
			RuleName:     "power_outage",
			TargetKey:    "Region/Utah/Provo",
			Severity:     models.AlertSeverityHigh,
			Message:      "Power outage suspected in Provo.",
			AffectedOnts: []string{},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	log, err := s.ListAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, log, 2)

	assert.Equal(t, "c", log[0].ID)
	assert.Equal(t, "b", log[1].ID)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
