package ocpp

import (
	"testing"
	"time"

	"chargeset/types"
)

func validContext() *SessionContext {
	now := types.NewDateTime(time.Now())
	return &SessionContext{
		IdToken:        "tok-A",
		EvseId:         "EVSE-1",
		ReservationId:  "650000000000000000000001",
		StartTime:      now,
		EndTime:        now,
		TargetEnergyWh: 1200,
		ChargingSchedules: []types.ChargingSchedulePeriod{
			{StartPeriod: 0, Limit: 30000, UseESS: false},
			{StartPeriod: 180, Limit: 0, UseESS: false},
		},
	}
}

func TestSessionContextValidate(t *testing.T) {
	if err := validContext().Validate(); err != nil {
		t.Fatalf("valid context rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(sc *SessionContext)
	}{
		{"missing reservation id", func(sc *SessionContext) { sc.ReservationId = "" }},
		{"missing token", func(sc *SessionContext) { sc.IdToken = "" }},
		{"missing evse", func(sc *SessionContext) { sc.EvseId = "" }},
		{"empty schedule", func(sc *SessionContext) { sc.ChargingSchedules = nil }},
		{"duplicate start period", func(sc *SessionContext) {
			sc.ChargingSchedules[1].StartPeriod = sc.ChargingSchedules[0].StartPeriod
		}},
		{"decreasing start period", func(sc *SessionContext) {
			sc.ChargingSchedules[0].StartPeriod = 300
		}},
	}
	for _, tt := range cases {
		sc := validContext()
		tt.mutate(sc)
		if err := sc.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	var nilContext *SessionContext
	if err := nilContext.Validate(); err == nil {
		t.Error("nil context must not validate")
	}
}
