// Package notify delivers the consolidated per-account summary email and the
// operational run reports.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"account-health-alerts/internal/alert"
)

// Recipient addresses one account owner.
type Recipient struct {
	Email     string
	FirstName string
}

// Row is one labeled summary line for a kind that fired.
type Row struct {
	Kind  alert.Kind
	Count int
}

// Summary is the per-account digest of one detection run.
type Summary struct {
	AccountID string
	Rows      []Row
	Total     int
}

// Notifier sends one consolidated message per account and run.
type Notifier interface {
	Send(ctx context.Context, to Recipient, summary Summary) error
}

// RunReport summarises one orchestrator invocation for the ops channel.
type RunReport struct {
	FiredAt    time.Time
	Enumerated int
	Processed  int
	Failed     int
	Duration   time.Duration
}

// OpsNotifier pushes run reports to the operations channel.
type OpsNotifier interface {
	ReportRun(ctx context.Context, report RunReport) error
}

func renderSummary(to Recipient, s Summary) (subject, body string) {
	subject = fmt.Sprintf("Account health: %d new alert finding(s)", s.Total)

	builder := strings.Builder{}
	name := strings.TrimSpace(to.FirstName)
	if name == "" {
		name = "there"
	}
	builder.WriteString(fmt.Sprintf("Hi %s,\n\n", name))
	builder.WriteString("Our latest account check found the following:\n\n")
	for _, row := range s.Rows {
		if row.Count == 0 {
			continue
		}
		builder.WriteString(fmt.Sprintf("- %s — %d %s\n", row.Kind.Label(), row.Count, unitFor(row.Kind, row.Count)))
	}
	builder.WriteString("\nSign in to your dashboard to review the details.\n")
	return subject, builder.String()
}

func unitFor(kind alert.Kind, count int) string {
	unit := "product"
	if kind.Series() {
		unit = "day"
	}
	if count != 1 {
		unit += "s"
	}
	return unit
}
