package epidemic

import (
	"math"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/physics"
)

// DefaultDurationThreshold is the infected level treated as extinction.
const DefaultDurationThreshold = 1e-6

// DurationHorizon is the default t_max for duration estimates, long enough
// for slow outbreaks to burn out.
const DurationHorizon = 5000.0

// Duration returns the first recorded time at which I <= threshold, or the
// last recorded time if I never gets there.
func Duration(tr *dynamo.Trajectory, threshold float64) float64 {
	if tr == nil || tr.Len() == 0 {
		return 0
	}
	for i, y := range tr.States {
		if y[physics.Infected] <= threshold {
			return tr.Times[i]
		}
	}
	t, _ := tr.Last()
	return t
}

// Peak returns the time and size of the largest recorded infected count.
func Peak(tr *dynamo.Trajectory) (t, infected float64) {
	if tr == nil || tr.Len() == 0 {
		return 0, 0
	}
	infected = math.Inf(-1)
	for i, y := range tr.States {
		if y[physics.Infected] > infected {
			t, infected = tr.Times[i], y[physics.Infected]
		}
	}
	return t, infected
}

type Summary struct {
	PeakTime     float64 `json:"peak_time"`
	PeakInfected float64 `json:"peak_infected"`
	Duration     float64 `json:"duration"`
	Ended        bool    `json:"ended"`
	FinalTime    float64 `json:"final_time"`
	FinalS       float64 `json:"final_s"`
	FinalI       float64 `json:"final_i"`
	FinalR       float64 `json:"final_r"`

	// AttackRate is the share of the initial population that left S.
	AttackRate float64 `json:"attack_rate"`

	// MaxDrift is the largest |S+I+R - N0| over the trajectory.
	MaxDrift float64 `json:"max_drift"`
}

func Summarize(tr *dynamo.Trajectory, threshold float64) Summary {
	var sum Summary
	if tr == nil || tr.Len() == 0 {
		return sum
	}

	sum.PeakTime, sum.PeakInfected = Peak(tr)
	sum.Duration = Duration(tr, threshold)

	tEnd, last := tr.Last()
	sum.FinalTime = tEnd
	sum.FinalS = last[physics.Susceptible]
	sum.FinalI = last[physics.Infected]
	sum.FinalR = last[physics.Recovered]
	sum.Ended = sum.FinalI <= threshold || sum.Duration < tEnd

	n0 := tr.States[0].Sum()
	if n0 > 0 {
		sum.AttackRate = (tr.States[0][physics.Susceptible] - sum.FinalS) / n0
	}
	for _, y := range tr.States {
		sum.MaxDrift = math.Max(sum.MaxDrift, math.Abs(y.Sum()-n0))
	}
	return sum
}

// Metrics flattens the summary for run metadata.
func (s Summary) Metrics() map[string]float64 {
	return map[string]float64{
		"peak_time":     s.PeakTime,
		"peak_infected": s.PeakInfected,
		"duration":      s.Duration,
		"final_time":    s.FinalTime,
		"final_s":       s.FinalS,
		"final_i":       s.FinalI,
		"final_r":       s.FinalR,
		"attack_rate":   s.AttackRate,
		"max_drift":     s.MaxDrift,
	}
}
