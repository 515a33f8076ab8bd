package fee

import (
	"reflect"
	"testing"

	"chargeset/internal"
	"chargeset/models"
	"chargeset/types"
)

func TestTouFee(t *testing.T) {
	tests := []struct {
		hour int
		want int
	}{
		{0, 99},
		{7, 99},
		{8, 143},
		{13, 143},
		{14, 166},
		{17, 166},
		{18, 143},
		{22, 143},
		{23, 99},
	}
	for _, tt := range tests {
		if got := TouFee(tt.hour); got != tt.want {
			t.Errorf("TouFee(%d) = %d, want %d", tt.hour, got, tt.want)
		}
	}
}

func TestBuildScheduleLowPower(t *testing.T) {
	s := NewService()

	schedule, total, err := s.BuildSchedule(10, 18000, 150000, "ST-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 738 {
		t.Errorf("total fee = %d, want 738", total)
	}
	want := []types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: LowPowerLimit, UseESS: false},
		{StartPeriod: 18000, Limit: 0, UseESS: false},
	}
	if !reflect.DeepEqual(schedule, want) {
		t.Errorf("schedule = %v, want %v", schedule, want)
	}
}

func TestBuildScheduleMixed(t *testing.T) {
	s := NewService()

	schedule, total, err := s.BuildSchedule(12, 7200, 80000, "ST-002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two shoulder hours plus one ESS hour at the default surcharge
	if total != 336 {
		t.Errorf("total fee = %d, want 336", total)
	}
	want := []types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: HighPowerLimit, UseESS: true},
		{StartPeriod: 3600, Limit: LowPowerLimit, UseESS: false},
		{StartPeriod: 7200, Limit: 0, UseESS: false},
	}
	if !reflect.DeepEqual(schedule, want) {
		t.Errorf("schedule = %v, want %v", schedule, want)
	}
}

func TestBuildScheduleMandatoryHighImmediate(t *testing.T) {
	s := NewService()

	schedule, total, err := s.BuildSchedule(10, 18000, 100000, "ST-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 286 {
		t.Errorf("total fee = %d, want 286", total)
	}
	want := []types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: HighPowerLimit, UseESS: true},
		{StartPeriod: 7200, Limit: 0, UseESS: false},
	}
	if !reflect.DeepEqual(schedule, want) {
		t.Errorf("schedule = %v, want %v", schedule, want)
	}
}

func TestBuildScheduleMandatoryHighShifted(t *testing.T) {
	s := NewService()

	// starting at 16:00 the peak band covers the first block, shifting the
	// two-hour block by one hour into the shoulder band is cheaper
	schedule, total, err := s.BuildSchedule(16, 36000, 80000, "ST-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 309 {
		t.Errorf("total fee = %d, want 309", total)
	}
	want := []types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 0, UseESS: false},
		{StartPeriod: 3600, Limit: HighPowerLimit, UseESS: true},
		{StartPeriod: 10800, Limit: 0, UseESS: false},
	}
	if !reflect.DeepEqual(schedule, want) {
		t.Errorf("schedule = %v, want %v", schedule, want)
	}
}

func TestBuildScheduleDeterministic(t *testing.T) {
	s := NewService()
	first, firstTotal, err := s.BuildSchedule(16, 36000, 80000, "ST-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, secondTotal, err := s.BuildSchedule(16, 36000, 80000, "ST-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firstTotal != secondTotal || !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs diverged: %v (%d) vs %v (%d)", first, firstTotal, second, secondTotal)
	}
}

func TestBuildScheduleInvariants(t *testing.T) {
	s := NewService()
	inputs := []struct {
		startHour, duration, energy int
	}{
		{10, 18000, 150000},
		{12, 7200, 80000},
		{16, 36000, 80000},
		{23, 10800, 130000},
		{7, 18000, 50000},
		{20, 18000, 40000},
		{0, 3599, 20000},
	}
	for _, in := range inputs {
		schedule, _, err := s.BuildSchedule(in.startHour, in.duration, in.energy, "ST-001")
		if err != nil {
			t.Fatalf("BuildSchedule(%d, %d, %d): %v", in.startHour, in.duration, in.energy, err)
		}
		if len(schedule) == 0 {
			t.Fatalf("BuildSchedule(%d, %d, %d): empty schedule", in.startHour, in.duration, in.energy)
		}
		last := -1
		for _, period := range schedule {
			if period.StartPeriod <= last {
				t.Errorf("BuildSchedule(%d, %d, %d): start periods not strictly increasing: %v",
					in.startHour, in.duration, in.energy, schedule)
				break
			}
			last = period.StartPeriod
		}
		if schedule[len(schedule)-1].Limit != 0 {
			t.Errorf("BuildSchedule(%d, %d, %d): schedule does not terminate with a zero limit: %v",
				in.startHour, in.duration, in.energy, schedule)
		}
	}
}

func TestBuildScheduleInvalidInput(t *testing.T) {
	s := NewService()
	cases := []struct {
		name                        string
		startHour, duration, energy int
	}{
		{"negative hour", -1, 3600, 10000},
		{"hour too large", 24, 3600, 10000},
		{"zero duration", 10, 0, 10000},
		{"zero energy", 10, 3600, 0},
	}
	for _, tt := range cases {
		if _, _, err := s.BuildSchedule(tt.startHour, tt.duration, tt.energy, "ST-001"); err == nil {
			t.Errorf("%s: expected error, got none", tt.name)
		}
	}
}

type stationDatabase struct {
	internal.Database
	station *models.Station
}

func (d *stationDatabase) GetStation(stationId string) (*models.Station, error) {
	return d.station, nil
}

func TestBuildScheduleStationSurcharge(t *testing.T) {
	s := NewService()
	s.SetDatabase(&stationDatabase{station: &models.Station{StationId: "ST-002", EssFee: 80}})

	_, total, err := s.BuildSchedule(12, 7200, 80000, "ST-002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 366 {
		t.Errorf("total fee = %d, want 366", total)
	}
}
