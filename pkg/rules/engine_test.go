package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avative-pat/FiberMonitorMap/pkg/config"
	"github.com/avative-pat/FiberMonitorMap/pkg/models"
	"github.com/avative-pat/FiberMonitorMap/pkg/store"
)

// fakeAlertStore is an in-memory alert log.
type fakeAlertStore struct {
	mu        sync.Mutex
	inserted  []*models.Alert
	resolved  []*models.Alert
	insertErr error
	active    []*models.Alert
}

var _ store.AlertStore = (*fakeAlertStore)(nil)

func (f *fakeAlertStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	f.inserted = append(f.inserted, alert)

	return nil
}

func (f *fakeAlertStore) ResolveAlert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolved = append(f.resolved, alert)

	return nil
}

func (f *fakeAlertStore) LoadActiveAlerts(ctx context.Context) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.active, nil
}

func (f *fakeAlertStore) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.inserted, nil
}

func (f *fakeAlertStore) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.inserted)
}

func (f *fakeAlertStore) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.resolved)
}

// missingOnt builds an ont-missing alarm record on a PON port, received at
// the given time.
func missingOnt(seq, ponPort, region string, receivedAt time.Time) models.AlarmRecord {
	var rec models.AlarmRecord
	rec.SequenceNum = seq
	rec.ConditionType = "ont-missing"
	rec.OntID = "sonar_item_" + seq
	rec.PonPort = ponPort
	rec.Region = region
	rec.ReceiveTime = receivedAt.UnixMilli()

	return rec
}

func dyingGasp(seq, region string, receivedAt time.Time) models.AlarmRecord {
	rec := missingOnt(seq, "", region, receivedAt)
	rec.ConditionType = "ont-dying-gasp"

	return rec
}

func fiberCutPolicy() config.Rule {
	return config.Rule{
		Name: "fiber_cut", ConditionType: "ont-missing", GroupBy: "pon_port",
		Threshold: 4, WindowMinutes: 30, Severity: "critical",
	}
}

func TestEvaluateEdgeTriggered(t *testing.T) {
	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{fiberCutPolicy()}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	onPort := func(n int, at time.Time) []models.AlarmRecord {
		recs := make([]models.AlarmRecord, 0, n)
		for i := 0; i < n; i++ {
			recs = append(recs, missingOnt(fmt.Sprintf("%d", i+1), "1/2/3", "Region/Utah/Provo", at))
		}
		return recs
	}

	// Below threshold: nothing fires.
	engine.Evaluate(ctx, onPort(2, now), now)
	assert.Empty(t, engine.ActiveAlerts())
	assert.Equal(t, 0, backing.insertCount())

	// Crossing the threshold raises exactly one alert.
	engine.Evaluate(ctx, onPort(4, now), now)
	active := engine.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "fiber_cut", active[0].RuleName)
	assert.Equal(t, "1/2/3", active[0].TargetKey)
	assert.Equal(t, models.AlertSeverityCritical, active[0].Severity)
	assert.Equal(t, "4 ONTs missing on PON 1/2/3. Possible fiber cut.", active[0].Message)
	assert.Len(t, active[0].AffectedOnts, 4)
	assert.Equal(t, 1, backing.insertCount())

	// Condition still true on the next cycle: no new alert.
	engine.Evaluate(ctx, onPort(5, now), now.Add(90*time.Second))
	assert.Len(t, engine.ActiveAlerts(), 1)
	assert.Equal(t, 1, backing.insertCount())
	assert.Equal(t, 0, backing.resolveCount())

	// Condition clears: the alert resolves, once.
	engine.Evaluate(ctx, onPort(1, now), now.Add(3*time.Minute))
	assert.Empty(t, engine.ActiveAlerts())
	assert.Equal(t, 1, backing.insertCount())
	assert.Equal(t, 1, backing.resolveCount())
	require.NotNil(t, backing.resolved[0].ResolvedAt)
}

func TestEvaluateRecencyWindow(t *testing.T) {
	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{fiberCutPolicy()}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	// Four ont-missing alarms on one port, but two are older than the
	// 30 minute window.
	snapshot := []models.AlarmRecord{
		missingOnt("1", "1/2/3", "", now.Add(-5*time.Minute)),
		missingOnt("2", "1/2/3", "", now.Add(-10*time.Minute)),
		missingOnt("3", "1/2/3", "", now.Add(-45*time.Minute)),
		missingOnt("4", "1/2/3", "", now.Add(-2*time.Hour)),
	}

	engine.Evaluate(ctx, snapshot, now)
	assert.Empty(t, engine.ActiveAlerts())
}

func TestEvaluateGroupsByTarget(t *testing.T) {
	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{fiberCutPolicy()}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	// Three alarms on each of two ports: neither crosses the threshold.
	var snapshot []models.AlarmRecord
	for i := 0; i < 3; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("a%d", i), "1/1/1", "", now))
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("b%d", i), "1/1/2", "", now))
	}

	engine.Evaluate(ctx, snapshot, now)
	assert.Empty(t, engine.ActiveAlerts())

	// A fourth alarm on one port fires only that port.
	snapshot = append(snapshot, missingOnt("a4", "1/1/1", "", now))
	engine.Evaluate(ctx, snapshot, now)

	active := engine.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "1/1/1", active[0].TargetKey)
}

func TestEvaluateGlobalMinimumGate(t *testing.T) {
	policy := config.Rule{
		Name: "ont_missing", ConditionType: "ont-missing", GroupBy: "region",
		Threshold: 5, WindowMinutes: 60, GlobalMin: 10, Severity: "medium",
	}

	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{policy}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	// Six in one region crosses the per-region threshold but not the
	// overall gate.
	var snapshot []models.AlarmRecord
	for i := 0; i < 6; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("p%d", i), "", "Region/Utah/Provo", now))
	}

	engine.Evaluate(ctx, snapshot, now)
	assert.Empty(t, engine.ActiveAlerts())

	// Four more elsewhere push the overall count to ten.
	for i := 0; i < 4; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("o%d", i), "", "Region/Utah/Orem", now))
	}

	engine.Evaluate(ctx, snapshot, now)

	active := engine.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "Region/Utah/Provo", active[0].TargetKey)
	assert.Equal(t, "Multiple ONTs missing in Provo. 6 ONTs affected.", active[0].Message)
}

func TestEvaluateGlobalMinimumCountsUngroupedAlarms(t *testing.T) {
	policy := config.Rule{
		Name: "ont_missing", ConditionType: "ont-missing", GroupBy: "region",
		Threshold: 5, WindowMinutes: 60, GlobalMin: 10, Severity: "medium",
	}

	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{policy}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	// Five in one region plus five with no region tag: the regionless
	// alarms satisfy the overall gate even though they can never fire.
	var snapshot []models.AlarmRecord
	for i := 0; i < 5; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("p%d", i), "", "Region/Utah/Provo", now))
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("u%d", i), "", "", now))
	}

	engine.Evaluate(ctx, snapshot, now)

	active := engine.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "Region/Utah/Provo", active[0].TargetKey)
}

func TestEvaluateRegionMessageUsesLastSegment(t *testing.T) {
	policy := config.Rule{
		Name: "power_outage", ConditionType: "ont-dying-gasp", GroupBy: "region",
		Threshold: 2, WindowMinutes: 10, Severity: "high",
	}

	backing := &fakeAlertStore{}
	engine := NewEngine([]config.Rule{policy}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	engine.Evaluate(ctx, []models.AlarmRecord{
		dyingGasp("1", "Region/Utah/Provo", now),
		dyingGasp("2", "Region/Utah/Provo", now),
	}, now)

	active := engine.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "Power outage suspected in Provo. 2 ONTs reported dying gasp.", active[0].Message)
}

func TestEvaluateInsertFailureRetriesNextCycle(t *testing.T) {
	backing := &fakeAlertStore{insertErr: errors.New("store down")}
	engine := NewEngine([]config.Rule{fiberCutPolicy()}, backing)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)

	var snapshot []models.AlarmRecord
	for i := 0; i < 4; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("%d", i), "1/2/3", "", now))
	}

	engine.Evaluate(ctx, snapshot, now)
	assert.Empty(t, engine.ActiveAlerts())

	// Once the store recovers the still-firing pair raises its alert.
	backing.mu.Lock()
	backing.insertErr = nil
	backing.mu.Unlock()

	engine.Evaluate(ctx, snapshot, now.Add(90*time.Second))
	assert.Len(t, engine.ActiveAlerts(), 1)
}

func TestLoadRestoresActiveAlerts(t *testing.T) {
	existing := &models.Alert{
		ID:        "alert-1",
		RuleName:  "fiber_cut",
		TargetKey: "1/2/3",
		Severity:  models.AlertSeverityCritical,
		CreatedAt: time.Date(2025, 5, 6, 11, 0, 0, 0, time.UTC),
	}

	backing := &fakeAlertStore{active: []*models.Alert{existing}}
	engine := NewEngine([]config.Rule{fiberCutPolicy()}, backing)
	ctx := context.Background()

	require.NoError(t, engine.Load(ctx))
	require.Len(t, engine.ActiveAlerts(), 1)

	// The restored pair does not re-fire while the condition holds.
	now := time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)
	var snapshot []models.AlarmRecord
	for i := 0; i < 4; i++ {
		snapshot = append(snapshot, missingOnt(fmt.Sprintf("%d", i), "1/2/3", "", now))
	}

	engine.Evaluate(ctx, snapshot, now)
	assert.Equal(t, 0, backing.insertCount())
	assert.Len(t, engine.ActiveAlerts(), 1)
}
