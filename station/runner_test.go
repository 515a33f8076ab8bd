package station

import (
	"context"
	"testing"
	"time"

	"chargeset/internal"
	"chargeset/ocpp"
	"chargeset/types"
)

type fakeClock struct{}

func (fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

type recordedEvent struct {
	kind   string
	cost   int
	energy int
}

type recordingSink struct {
	events []recordedEvent
}

func (s *recordingSink) TransactionStarted(ctx context.Context, sc *ocpp.SessionContext) error {
	s.events = append(s.events, recordedEvent{kind: "started"})
	return nil
}

func (s *recordingSink) CostUpdated(ctx context.Context, reservationId string, totalCost, totalEnergy int) error {
	s.events = append(s.events, recordedEvent{kind: "cost", cost: totalCost, energy: totalEnergy})
	return nil
}

func (s *recordingSink) TransactionEnded(ctx context.Context, sc *ocpp.SessionContext) error {
	s.events = append(s.events, recordedEvent{kind: "ended"})
	return nil
}

func nopLogger() internal.LogHandler {
	return internal.NewLogger(time.UTC)
}

func sessionContext(schedules []types.ChargingSchedulePeriod) *ocpp.SessionContext {
	now := types.NewDateTime(time.Now())
	return &ocpp.SessionContext{
		IdToken:           "tok-A",
		EvseId:            "EVSE-1",
		ConnectorId:       1,
		ReservationId:     "65000000000000000000aa01",
		StartTime:         now,
		EndTime:           now,
		Cost:              420,
		TargetEnergyWh:    1200,
		ChargingSchedules: schedules,
	}
}

func TestRunnerEventOrder(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(sink, fakeClock{}, nopLogger())

	sc := sessionContext([]types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 6000, UseESS: false},
		{StartPeriod: 120, Limit: 60000, UseESS: true},
		{StartPeriod: 180, Limit: 0, UseESS: false},
	})
	if err := runner.Run(context.Background(), sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.events) == 0 || sink.events[0].kind != "started" {
		t.Fatalf("expected started first, got %v", sink.events)
	}
	if sink.events[len(sink.events)-1].kind != "ended" {
		t.Fatalf("expected ended last, got %v", sink.events)
	}
	costs := 0
	ended := 0
	for _, ev := range sink.events {
		switch ev.kind {
		case "cost":
			costs++
		case "ended":
			ended++
		}
	}
	// 0..120 at 12 s chunks is 10 updates, 120..180 is 5 more
	if costs != 15 {
		t.Errorf("expected 15 cost updates, got %d", costs)
	}
	if ended != 1 {
		t.Errorf("expected exactly one ended event, got %d", ended)
	}
}

func TestRunnerAccrualTiers(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(sink, fakeClock{}, nopLogger())

	sc := sessionContext([]types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 6000, UseESS: false},
		{StartPeriod: 120, Limit: 60000, UseESS: true},
		{StartPeriod: 180, Limit: 0, UseESS: false},
	})
	if err := runner.Run(context.Background(), sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var last recordedEvent
	for _, ev := range sink.events {
		if ev.kind == "cost" {
			last = ev
		}
	}
	// ten low-tier chunks then five high-tier chunks
	wantCost := 10*costPerChunkLow + 5*costPerChunkHigh
	wantEnergy := 15 * energyPerChunk
	if last.cost != wantCost || last.energy != wantEnergy {
		t.Errorf("final totals = cost %d energy %d, want cost %d energy %d", last.cost, last.energy, wantCost, wantEnergy)
	}
}

func TestRunnerDelayedStartAccruesNothing(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(sink, fakeClock{}, nopLogger())

	// no-charging gap before a high-power block, then terminal segment
	sc := sessionContext([]types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 0, UseESS: false},
		{StartPeriod: 60, Limit: 60000, UseESS: true},
		{StartPeriod: 120, Limit: 0, UseESS: false},
	})
	if err := runner.Run(context.Background(), sc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ev := range sink.events {
		if ev.kind == "cost" && ev.cost == 0 && ev.energy != 0 {
			t.Errorf("energy accrued without cost during gap: %v", ev)
		}
	}
	var last recordedEvent
	for _, ev := range sink.events {
		if ev.kind == "cost" {
			last = ev
		}
	}
	if last.cost != 5*costPerChunkHigh {
		t.Errorf("final cost = %d, want %d", last.cost, 5*costPerChunkHigh)
	}
	if sink.events[len(sink.events)-1].kind != "ended" {
		t.Errorf("expected ended last, got %v", sink.events)
	}
}

func TestRunnerCancellation(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	runner := NewRunner(sink, clockFunc(func(d time.Duration) <-chan time.Time {
		calls++
		if calls == 3 {
			cancel()
			return make(chan time.Time)
		}
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}), nopLogger())

	sc := sessionContext([]types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 6000, UseESS: false},
		{StartPeriod: 120, Limit: 0, UseESS: false},
	})
	if err := runner.Run(ctx, sc); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, ev := range sink.events {
		if ev.kind == "ended" {
			t.Errorf("cancelled run must not emit ended: %v", sink.events)
		}
	}
}

func TestRunnerRejectsInvalidContext(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(sink, fakeClock{}, nopLogger())

	sc := sessionContext(nil)
	if err := runner.Run(context.Background(), sc); err == nil {
		t.Fatal("expected validation error for empty schedule")
	}
	if len(sink.events) != 0 {
		t.Errorf("no events expected for invalid context, got %v", sink.events)
	}
}

type clockFunc func(d time.Duration) <-chan time.Time

func (f clockFunc) After(d time.Duration) <-chan time.Time {
	return f(d)
}
