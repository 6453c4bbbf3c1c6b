package models

import (
	"time"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
)

// Alert represents an incident inferred from a pattern across multiple
// concurrent alarms, e.g. a suspected fiber cut or power outage. An alert
// stays active until the triggering condition no longer holds, at which
// point ResolvedAt is set. At most one active alert exists per
// (rule, target key) pair.
type Alert struct {
	ID           string        `json:"id"`
	RuleName     string        `json:"ruleName"`
	TargetKey    string        `json:"targetKey"`
	Severity     AlertSeverity `json:"severity"`
	Message      string        `json:"message"`
	AffectedOnts []string      `json:"affected_onts"`
	CreatedAt    time.Time     `json:"created_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
}

// Active reports whether the alert has not yet been resolved.
func (a *Alert) Active() bool {
	return a.ResolvedAt == nil
}
