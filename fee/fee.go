package fee

import (
	"chargeset/internal"
	"chargeset/types"
	"fmt"
)

// Charging runs either on grid power at the low tier or ESS-assisted at the
// high tier. The high tier carries a flat per-hour surcharge configured per
// station instead of the peak grid tariff.
const (
	LowPowerLimit  = 30000
	HighPowerLimit = 50000

	DefaultEssFee   = 50
	DefaultEssPower = 10000
)

// Time-of-use tariff bands, cost units per hour.
const (
	feeOffPeak  = 99
	feeShoulder = 143
	feePeak     = 166
)

// TouFee returns the time-of-use tariff for the given hour of day.
func TouFee(hour int) int {
	if hour < 8 || hour > 22 {
		return feeOffPeak
	}
	if hour < 14 || hour > 17 {
		return feeShoulder
	}
	return feePeak
}

// Service builds minimum-cost charging schedules. The database supplies
// per-station ESS tariff parameters and may be absent, in which case the
// defaults apply.
type Service struct {
	database internal.Database
	logger   internal.LogHandler
}

func NewService() *Service {
	return &Service{}
}

func (s *Service) SetDatabase(database internal.Database) {
	s.database = database
}

func (s *Service) SetLogger(logger internal.LogHandler) {
	s.logger = logger
}

func (s *Service) essFee(stationId string) int {
	if s.database == nil {
		return DefaultEssFee
	}
	station, err := s.database.GetStation(stationId)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("get station tariff", err)
		}
		return DefaultEssFee
	}
	if station == nil || station.EssFee <= 0 {
		return DefaultEssFee
	}
	return station.EssFee
}

// BuildSchedule computes the cheapest schedule delivering energyWh within
// durationSeconds when charging starts at startHour. It returns the schedule
// periods and the total fee.
//
// The quick-time pass first asks how many high-power hours are needed for the
// remaining energy to fit the requested duration at low power. A negative
// answer means the duration is too short even with mixed charging; the
// session then becomes a pure high-power block and every start offset within
// the block length is searched for the minimum total tariff.
func (s *Service) BuildSchedule(startHour, durationSeconds, energyWh int, stationId string) ([]types.ChargingSchedulePeriod, int, error) {
	if startHour < 0 || startHour > 23 {
		return nil, 0, fmt.Errorf("start hour out of range: %d", startHour)
	}
	if durationSeconds <= 0 {
		return nil, 0, fmt.Errorf("duration must be positive, got %d", durationSeconds)
	}
	if energyWh <= 0 {
		return nil, 0, fmt.Errorf("energy must be positive, got %d", energyWh)
	}

	extraPower := HighPowerLimit - LowPowerLimit
	durHours := durationSeconds / 3600
	quickTime := (energyWh - durHours*LowPowerLimit + extraPower - 1) / extraPower

	if quickTime < 0 {
		return s.mandatoryHighPower(startHour, energyWh)
	}
	return s.mixedLowPower(startHour, durationSeconds, quickTime, stationId)
}

// mandatoryHighPower handles the case where the requested duration cannot
// deliver the energy even with the maximum share of high-power hours. The
// session is recomputed as the minimal block of pure high-power hours and the
// block start is brute-forced over every candidate offset; the search space
// is bounded by the block length, so the minimum found is exact.
func (s *Service) mandatoryHighPower(startHour, energyWh int) ([]types.ChargingSchedulePeriod, int, error) {
	hours := (energyWh + HighPowerLimit - 1) / HighPowerLimit

	minSum := feePeak * hours
	minStart := startHour
	for i := 0; i < hours; i++ {
		feeSum := 0
		for j := startHour + i; j < startHour+hours+i; j++ {
			feeSum += TouFee(j % 24)
		}
		if feeSum < minSum {
			minSum = feeSum
			minStart = startHour + i
		}
	}

	var schedule []types.ChargingSchedulePeriod
	gap := minStart - startHour
	if gap > 0 {
		// delayed start: no power until the cheap block begins
		schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: 0, Limit: 0, UseESS: false})
	}
	schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: gap * 3600, Limit: HighPowerLimit, UseESS: true})
	schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: (gap + hours) * 3600, Limit: 0, UseESS: false})

	if s.logger != nil {
		s.logger.Debug(fmt.Sprintf("fee: mandatory high-power block of %d h starting at hour %d, total %d", hours, minStart, minSum))
	}
	return schedule, minSum, nil
}

// mixedLowPower handles the case where low power suffices for most of the
// session: quickTime hours run on the ESS-assisted tier first, the remainder
// on grid power. The tariff accrues per started hour of the requested
// duration plus the flat ESS surcharge per high-power hour.
func (s *Service) mixedLowPower(startHour, durationSeconds, quickTime int, stationId string) ([]types.ChargingSchedulePeriod, int, error) {
	hours := (durationSeconds + 3599) / 3600
	feeSum := 0
	for k := 0; k < hours; k++ {
		feeSum += TouFee((startHour + k) % 24)
	}
	feeSum += quickTime * s.essFee(stationId)

	var schedule []types.ChargingSchedulePeriod
	if quickTime > 0 {
		schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: 0, Limit: HighPowerLimit, UseESS: true})
		if durationSeconds-quickTime*3600 > 0 {
			schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: quickTime * 3600, Limit: LowPowerLimit, UseESS: false})
		}
	} else {
		schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: 0, Limit: LowPowerLimit, UseESS: false})
	}
	schedule = append(schedule, types.ChargingSchedulePeriod{StartPeriod: durationSeconds, Limit: 0, UseESS: false})

	if s.logger != nil {
		s.logger.Debug(fmt.Sprintf("fee: %d h high / %d s total, fee %d", quickTime, durationSeconds, feeSum))
	}
	return schedule, feeSum, nil
}
