package station

import (
	"context"
	"fmt"
	"time"

	"chargeset/internal"
	"chargeset/ocpp"
)

const (
	// chunkSeconds is the accrual granularity: long waits between schedule
	// segments are split into chunks and billing totals are reported after
	// each one.
	chunkSeconds = 12

	// highPowerThreshold separates the two accrual tiers by segment limit.
	highPowerThreshold = 60000

	costPerChunkHigh = 72
	costPerChunkLow  = 6
	energyPerChunk   = 20
)

// EventSink receives the lifecycle events the runner produces, in order:
// one Started, zero or more CostUpdated, one Ended.
type EventSink interface {
	TransactionStarted(ctx context.Context, sc *ocpp.SessionContext) error
	CostUpdated(ctx context.Context, reservationId string, totalCost, totalEnergy int) error
	TransactionEnded(ctx context.Context, sc *ocpp.SessionContext) error
}

// Runner walks a charging schedule in real time. Each segment's start period
// is an offset from session start; the wait up to a segment accrues cost at
// the tier of the segment currently in force.
type Runner struct {
	sink   EventSink
	clock  Clock
	logger internal.LogHandler
}

func NewRunner(sink EventSink, clock Clock, logger internal.LogHandler) *Runner {
	return &Runner{sink: sink, clock: clock, logger: logger}
}

// Run executes the session described by the context bundle. A zero-limit
// segment after the first one terminates the schedule; the Ended event is
// emitted on any normal exhaustion of the schedule. Cancellation of ctx
// abandons the session without an Ended event.
func (r *Runner) Run(ctx context.Context, sc *ocpp.SessionContext) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := r.sink.TransactionStarted(ctx, sc); err != nil {
		return err
	}
	r.logger.FeatureEvent(ocpp.TransactionEventFeatureName, sc.EvseId, fmt.Sprintf("session started, reservation %s", sc.ReservationId))

	totalCost := 0
	totalEnergy := 0
	lastStart := 0
	lastLimit := 0

	for i, segment := range sc.ChargingSchedules {
		remaining := segment.StartPeriod - lastStart
		for remaining > 0 {
			step := chunkSeconds
			if remaining < step {
				step = remaining
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(time.Duration(step) * time.Second):
			}
			remaining -= step

			// a zero limit in force means no power is flowing, nothing accrues
			if lastLimit > 0 {
				if lastLimit >= highPowerThreshold {
					totalCost += costPerChunkHigh
				} else {
					totalCost += costPerChunkLow
				}
				totalEnergy += energyPerChunk
			}
			if err := r.sink.CostUpdated(ctx, sc.ReservationId, totalCost, totalEnergy); err != nil {
				return err
			}
		}
		if segment.Limit == 0 && i > 0 {
			break
		}
		lastStart = segment.StartPeriod
		lastLimit = segment.Limit
	}

	if err := r.sink.TransactionEnded(ctx, sc); err != nil {
		return err
	}
	r.logger.FeatureEvent(ocpp.TransactionEventFeatureName, sc.EvseId, fmt.Sprintf("session ended, reservation %s, cost %d, energy %d Wh", sc.ReservationId, totalCost, totalEnergy))
	return nil
}
