package coordinator

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
)

const meterName = "github.com/dmitry-ulyanichev/render-com-steam-id-processor/coordinator"

// coordinatorMetrics holds OTel instruments for the worker loop.
// All methods are nil-safe so callers don't need to guard against disabled
// telemetry.
type coordinatorMetrics struct {
	// cycleTotal counts work cycles, productive or idle.
	cycleTotal metric.Int64Counter

	// claimTotal counts items claimed from the queue service and inserted.
	claimTotal metric.Int64Counter

	// checkTotal counts recorded check outcomes, labeled by check and status.
	checkTotal metric.Int64Counter

	// cooldownTotal counts applied cooldowns, labeled by endpoint and reason.
	cooldownTotal metric.Int64Counter

	// completedTotal counts profiles driven to completion and removed.
	completedTotal metric.Int64Counter

	// gaugeMu protects the queue depth values observed by the callback.
	gaugeMu       sync.RWMutex
	profileCount  int64
	deferredCount int64
}

// newCoordinatorMetrics registers the worker's OTel instruments against the
// global MeterProvider. With no provider configured the instruments are
// no-ops.
func newCoordinatorMetrics() (*coordinatorMetrics, error) {
	m := otel.GetMeterProvider().Meter(meterName)
	cm := &coordinatorMetrics{}

	var err error

	cm.cycleTotal, err = m.Int64Counter("sip.coordinator.cycle.total",
		metric.WithDescription("Total number of worker cycles"),
	)
	if err != nil {
		return nil, err
	}

	cm.claimTotal, err = m.Int64Counter("sip.coordinator.claim.total",
		metric.WithDescription("Total number of queue items claimed and inserted"),
	)
	if err != nil {
		return nil, err
	}

	cm.checkTotal, err = m.Int64Counter("sip.coordinator.check.total",
		metric.WithDescription("Total number of recorded check outcomes"),
	)
	if err != nil {
		return nil, err
	}

	cm.cooldownTotal, err = m.Int64Counter("sip.coordinator.cooldown.total",
		metric.WithDescription("Total number of endpoint cooldowns applied"),
	)
	if err != nil {
		return nil, err
	}

	cm.completedTotal, err = m.Int64Counter("sip.coordinator.completed.total",
		metric.WithDescription("Total number of profiles completed and removed"),
	)
	if err != nil {
		return nil, err
	}

	// Queue depth gauges, updated after each cycle and collected by the SDK
	// on its export interval.
	profileGauge, err := m.Int64ObservableGauge("sip.store.profiles",
		metric.WithDescription("Profiles currently held in the local queue"),
	)
	if err != nil {
		return nil, err
	}

	deferredGauge, err := m.Int64ObservableGauge("sip.store.deferred_checks",
		metric.WithDescription("Checks currently deferred by cooldowns"),
	)
	if err != nil {
		return nil, err
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		cm.gaugeMu.RLock()
		defer cm.gaugeMu.RUnlock()
		o.ObserveInt64(profileGauge, cm.profileCount)
		o.ObserveInt64(deferredGauge, cm.deferredCount)
		return nil
	}, profileGauge, deferredGauge)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// recordCycle increments the cycle counter.
func (cm *coordinatorMetrics) recordCycle(ctx context.Context) {
	if cm == nil {
		return
	}
	cm.cycleTotal.Add(ctx, 1)
}

// recordClaims adds the number of items inserted from one claim round.
func (cm *coordinatorMetrics) recordClaims(ctx context.Context, n int) {
	if cm == nil || n == 0 {
		return
	}
	cm.claimTotal.Add(ctx, int64(n))
}

// recordCheck increments the outcome counter for one check result.
func (cm *coordinatorMetrics) recordCheck(ctx context.Context, check checks.Check, status checks.Status) {
	if cm == nil {
		return
	}
	cm.checkTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("check.name", string(check)),
			attribute.String("check.status", string(status)),
		),
	)
}

// recordCooldown increments the cooldown counter for one applied cooldown.
func (cm *coordinatorMetrics) recordCooldown(ctx context.Context, endpoint cooldown.Endpoint, reason cooldown.Reason) {
	if cm == nil {
		return
	}
	cm.cooldownTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("endpoint", string(endpoint)),
			attribute.String("reason", string(reason)),
		),
	)
}

// recordCompleted increments the completed-profile counter.
func (cm *coordinatorMetrics) recordCompleted(ctx context.Context) {
	if cm == nil {
		return
	}
	cm.completedTotal.Add(ctx, 1)
}

// updateQueueDepth stores the latest store depth snapshot for the gauges.
func (cm *coordinatorMetrics) updateQueueDepth(profiles, deferred int64) {
	if cm == nil {
		return
	}
	cm.gaugeMu.Lock()
	defer cm.gaugeMu.Unlock()
	cm.profileCount = profiles
	cm.deferredCount = deferred
}
