package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/config"
	"github.com/avative-pat/FiberMonitorMap/pkg/models"
	"github.com/avative-pat/FiberMonitorMap/pkg/store"
)

// Engine evaluates the alarm snapshot against the configured incident
// policies and maintains the alert lifecycle. Alerts are edge-triggered:
// one is created when a (policy, target) pair first crosses its threshold
// and resolved when the condition no longer holds. While the condition
// persists, re-evaluation is a no-op, so at most one active alert exists
// per pair.
//
// The engine is the sole writer of alert state. Evaluate is called once
// per poll cycle from the scheduler; the listing accessors are safe to
// call concurrently from API handlers.
type Engine struct {
	policies []config.Rule
	backing  store.AlertStore

	mu     sync.RWMutex
	active map[string]*models.Alert

	newID func() string
}

// NewEngine creates an engine for the given policies. Call Load before
// the first Evaluate to restore active alerts from the store.
func NewEngine(policies []config.Rule, backing store.AlertStore) *Engine {
	return &Engine{
		policies: policies,
		backing:  backing,
		active:   make(map[string]*models.Alert),
		newID:    func() string { return uuid.New().String() },
	}
}

// Load restores the active-alert index from the backing store so alerts
// survive a restart without re-firing.
func (e *Engine) Load(ctx context.Context) error {
	alerts, err := e.backing.LoadActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}

	e.mu.Lock()
	e.active = make(map[string]*models.Alert, len(alerts))
	for _, alert := range alerts {
		e.active[pairKey(alert.RuleName, alert.TargetKey)] = alert
	}
	e.mu.Unlock()

	logrus.Infof("Loaded %d active alerts from store", len(alerts))

	return nil
}

// Evaluate runs every policy against the snapshot, creating alerts for
// newly firing (policy, target) pairs and resolving alerts whose
// condition cleared. now is the evaluation instant for recency windows.
func (e *Engine) Evaluate(ctx context.Context, snapshot []models.AlarmRecord, now time.Time) {
	firing := make(map[string]finding)

	for _, policy := range e.policies {
		for target, f := range evaluatePolicy(policy, snapshot, now) {
			firing[pairKey(policy.Name, target)] = f
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for key, f := range firing {
		if _, ok := e.active[key]; ok {
			continue
		}

		alert := &models.Alert{
			ID:           e.newID(),
			RuleName:     f.policy.Name,
			TargetKey:    f.target,
			Severity:     models.AlertSeverity(f.policy.Severity),
			Message:      f.message,
			AffectedOnts: f.onts,
			CreatedAt:    now.UTC(),
		}

		if err := e.backing.InsertAlert(ctx, alert); err != nil {
			logrus.Errorf("Failed to persist alert %s: %v", alert.ID, err)
			continue
		}

		e.active[key] = alert
		logrus.Warnf("Alert raised [%s/%s]: %s", alert.RuleName, alert.TargetKey, alert.Message)
	}

	for key, alert := range e.active {
		if _, ok := firing[key]; ok {
			continue
		}

		resolvedAt := now.UTC()
		alert.ResolvedAt = &resolvedAt

		if err := e.backing.ResolveAlert(ctx, alert); err != nil {
			logrus.Errorf("Failed to resolve alert %s: %v", alert.ID, err)
			alert.ResolvedAt = nil
			continue
		}

		delete(e.active, key)
		logrus.Infof("Alert resolved [%s/%s] after %s", alert.RuleName, alert.TargetKey,
			resolvedAt.Sub(alert.CreatedAt).Round(time.Second))
	}
}

// ActiveAlerts returns the currently active alerts, newest first.
func (e *Engine) ActiveAlerts() []models.Alert {
	e.mu.RLock()
	out := make([]models.Alert, 0, len(e.active))
	for _, alert := range e.active {
		out = append(out, *alert)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// Alerts returns the alert log from the store, newest first, including
// resolved alerts.
func (e *Engine) Alerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	return e.backing.ListAlerts(ctx, limit)
}

// finding is one (policy, target) pair that crossed its threshold.
type finding struct {
	policy  config.Rule
	target  string
	message string
	onts    []string
}

// evaluatePolicy returns the targets a single policy fires on, keyed by
// target.
func evaluatePolicy(policy config.Rule, snapshot []models.AlarmRecord, now time.Time) map[string]finding {
	var cutoff time.Time
	if policy.WindowMinutes > 0 {
		cutoff = now.Add(-time.Duration(policy.WindowMinutes) * time.Minute)
	}

	groups := make(map[string][]*models.AlarmRecord)
	total := 0

	for i := range snapshot {
		rec := &snapshot[i]

		if rec.ConditionType != policy.ConditionType {
			continue
		}
		if !cutoff.IsZero() && rec.ReceivedAt().Before(cutoff) {
			continue
		}

		// Alarms with no grouping key still count toward the overall
		// gate; they just cannot fire a per-target alert.
		total++

		target := groupKey(policy.GroupBy, rec)
		if target == "" {
			continue
		}

		groups[target] = append(groups[target], rec)
	}

	if policy.GlobalMin > 0 && total < policy.GlobalMin {
		return nil
	}

	findings := make(map[string]finding)

	for target, recs := range groups {
		if len(recs) < policy.Threshold {
			continue
		}

		onts := make([]string, 0, len(recs))
		for _, rec := range recs {
			onts = append(onts, rec.OntID)
		}
		sort.Strings(onts)

		findings[target] = finding{
			policy:  policy,
			target:  target,
			message: policyMessage(policy, target, len(recs)),
			onts:    onts,
		}
	}

	return findings
}

func groupKey(groupBy string, rec *models.AlarmRecord) string {
	switch groupBy {
	case "pon_port":
		return rec.PonPort
	case "region":
		return rec.Region
	default:
		return ""
	}
}

// policyMessage renders the operator-facing message for a firing policy.
// Region targets use only the last path segment; SMx reports regions as
// slash-separated hierarchy paths.
func policyMessage(policy config.Rule, target string, count int) string {
	name := target
	if idx := strings.LastIndex(target, "/"); idx >= 0 {
		name = target[idx+1:]
	}

	switch policy.Name {
	case "fiber_cut":
		return fmt.Sprintf("%d ONTs missing on PON %s. Possible fiber cut.", count, target)
	case "power_outage":
		return fmt.Sprintf("Power outage suspected in %s. %d ONTs reported dying gasp.", name, count)
	case "ethernet_issue":
		return fmt.Sprintf("Ethernet loss detected in %s. %d ONTs affected.", name, count)
	case "ont_missing":
		return fmt.Sprintf("Multiple ONTs missing in %s. %d ONTs affected.", name, count)
	default:
		return fmt.Sprintf("%d %s alarms in %s exceeded threshold %d.", count, policy.ConditionType, name, policy.Threshold)
	}
}

func pairKey(ruleName, target string) string {
	return ruleName + "|" + target
}
