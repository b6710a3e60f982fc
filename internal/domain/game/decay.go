package game

// HourSeconds is the length of one scoring window.
const HourSeconds = 3600

// Default decay bounds.
const (
	DefaultMaxPoints = 1000
	DefaultMinPoints = 100

	// maxDecayPoints keeps span*secondsIntoHour within uint64.
	maxDecayPoints = 1 << 40
)

// Decay maps the seconds elapsed inside an hour to the points awarded for
// working at that moment. Points fall linearly from MaxPoints at second 0
// towards MinPoints at the end of the hour, using integer arithmetic only.
type Decay struct {
	MaxPoints uint64
	MinPoints uint64
}

// Points returns the award for working secondsIntoHour seconds into the hour.
// Values beyond the hour are clamped to its last second.
func (d Decay) Points(secondsIntoHour uint64) uint64 {
	if secondsIntoHour >= HourSeconds {
		secondsIntoHour = HourSeconds - 1
	}
	span := d.MaxPoints - d.MinPoints
	return d.MaxPoints - span*secondsIntoHour/HourSeconds
}

func (d Decay) valid() bool {
	return d.MaxPoints > 0 && d.MaxPoints <= maxDecayPoints && d.MinPoints <= d.MaxPoints
}
