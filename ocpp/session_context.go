package ocpp

import (
	"chargeset/types"
	"chargeset/utility"
	"fmt"
)

// SessionContext is the bundle delivered atomically with an Accepted
// authorization verdict. It is the only channel by which the station learns
// the session parameters, so every downstream message carries it back.
type SessionContext struct {
	UserId            string                         `json:"userId"`
	IdToken           string                         `json:"idToken"`
	ConnectorId       int                            `json:"connectorId"`
	EvseId            string                         `json:"evseId"`
	ReservationId     string                         `json:"reservationId"`
	StartTime         *types.DateTime                `json:"startTime"`
	EndTime           *types.DateTime                `json:"endTime"`
	Cost              int                            `json:"cost"`
	TargetEnergyWh    int                            `json:"targetEnergyWh"`
	ChargingSchedules []types.ChargingSchedulePeriod `json:"chargingSchedules"`
}

// Validate rejects malformed context bundles at the message boundary instead
// of letting them fail deep inside the session pipeline.
func (sc *SessionContext) Validate() error {
	if sc == nil {
		return utility.Err("missing session context")
	}
	if sc.ReservationId == "" {
		return utility.Err("session context: missing reservation id")
	}
	if sc.IdToken == "" {
		return utility.Err("session context: missing id token")
	}
	if sc.EvseId == "" {
		return utility.Err("session context: missing evse id")
	}
	if len(sc.ChargingSchedules) == 0 {
		return utility.Err("session context: empty charging schedule")
	}
	last := -1
	for _, period := range sc.ChargingSchedules {
		if period.StartPeriod <= last {
			return fmt.Errorf("session context: schedule start periods must increase, got %d after %d", period.StartPeriod, last)
		}
		last = period.StartPeriod
	}
	return nil
}
