// Package telemetry exposes the OpenTelemetry counters recorded by the
// session engine. A nil *Metrics records nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrNilMeter = errors.New("nil meter")

// Rotation outcomes recorded on antecipa_refresh_rotations_total.
const (
	OutcomeRotated  = "rotated"
	OutcomeRejected = "rejected"
	OutcomeReplay   = "replay"
)

type Metrics struct {
	logins      metric.Int64Counter
	rotations   metric.Int64Counter
	revocations metric.Int64Counter
	remediated  metric.Int64Counter
	pruned      metric.Int64Counter
	conflicts   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	m := &Metrics{}
	defs := []struct {
		name string
		help string
		dst  *metric.Int64Counter
	}{
		{"antecipa_logins_total", "Successful password logins.", &m.logins},
		{"antecipa_refresh_rotations_total", "Refresh attempts by outcome.", &m.rotations},
		{"antecipa_refresh_revocations_total", "Refresh tokens revoked on logout.", &m.revocations},
		{"antecipa_refresh_remediated_total", "Descendant tokens revoked after a replayed ancestor.", &m.remediated},
		{"antecipa_refresh_pruned_total", "Inactive refresh tokens removed from chains.", &m.pruned},
		{"antecipa_persist_conflicts_total", "Optimistic persist conflicts.", &m.conflicts},
	}

	for _, d := range defs {
		c, err := meter.Int64Counter(d.name, metric.WithDescription(d.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", d.name, err)
		}
		*d.dst = c
	}
	return m, nil
}

func (m *Metrics) Login(ctx context.Context) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1)
}

// Rotation records one refresh attempt with the given outcome.
func (m *Metrics) Rotation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) Revocation(ctx context.Context) {
	if m == nil {
		return
	}
	m.revocations.Add(ctx, 1)
}

func (m *Metrics) Remediated(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.remediated.Add(ctx, int64(n))
}

func (m *Metrics) Pruned(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pruned.Add(ctx, int64(n))
}

func (m *Metrics) Conflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}
