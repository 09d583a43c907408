package epidemic_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/integrators"
)

func handBuilt() *dynamo.Trajectory {
	tr := dynamo.NewTrajectory(5)
	tr.Append(0, dynamo.State{90, 10, 0})
	tr.Append(1, dynamo.State{70, 25, 5})
	tr.Append(2, dynamo.State{50, 30, 20})
	tr.Append(3, dynamo.State{45, 5, 50})
	tr.Append(4, dynamo.State{44, 0.5, 55.5})
	return tr
}

var _ = Describe("Duration", func() {
	It("returns the first time I reaches the threshold", func() {
		Expect(epidemic.Duration(handBuilt(), 5)).To(Equal(3.0))
		Expect(epidemic.Duration(handBuilt(), 1)).To(Equal(4.0))
	})

	It("falls back to the last recorded time", func() {
		Expect(epidemic.Duration(handBuilt(), 0.1)).To(Equal(4.0))
	})

	It("is zero for an empty trajectory", func() {
		Expect(epidemic.Duration(dynamo.NewTrajectory(0), 1)).To(BeZero())
		Expect(epidemic.Duration(nil, 1)).To(BeZero())
	})

	It("finds extinction for the textbook outbreak over a long horizon", func() {
		prob := epidemic.Problem{S0: 990, I0: 10, Beta: 0.3, Gamma: 0.1, TMax: epidemic.DurationHorizon, Step: 1}
		res, err := epidemic.New(integrators.NewBackwardEuler()).Solve(context.Background(), prob)
		Expect(err).NotTo(HaveOccurred())

		d := epidemic.Duration(res.Trajectory, epidemic.DefaultDurationThreshold)
		Expect(d).To(BeNumerically(">", 100))
		Expect(d).To(BeNumerically("<", epidemic.DurationHorizon))
		Expect(res.Summary.Ended).To(BeTrue())
	})
})

var _ = Describe("Peak", func() {
	It("reports the largest infected count and its time", func() {
		t, i := epidemic.Peak(handBuilt())
		Expect(t).To(Equal(2.0))
		Expect(i).To(Equal(30.0))
	})

	It("peaks once for the textbook outbreak", func() {
		res, err := epidemic.New(integrators.NewRKF45()).Solve(context.Background(), textbook())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Summary.PeakTime).To(BeNumerically(">", 20))
		Expect(res.Summary.PeakTime).To(BeNumerically("<", 60))
		Expect(res.Summary.PeakInfected).To(BeNumerically(">", 200))
	})
})

var _ = Describe("Summarize", func() {
	It("collects the end state, attack rate and drift", func() {
		sum := epidemic.Summarize(handBuilt(), 1)

		Expect(sum.FinalTime).To(Equal(4.0))
		Expect(sum.FinalS).To(Equal(44.0))
		Expect(sum.FinalI).To(Equal(0.5))
		Expect(sum.FinalR).To(Equal(55.5))
		Expect(sum.AttackRate).To(BeNumerically("~", 0.46, 1e-12))
		Expect(sum.MaxDrift).To(BeNumerically("~", 0, 1e-12))
		Expect(sum.Ended).To(BeTrue())
	})

	It("flattens into run metrics", func() {
		m := epidemic.Summarize(handBuilt(), 1).Metrics()
		Expect(m).To(HaveKeyWithValue("peak_infected", 30.0))
		Expect(m).To(HaveKeyWithValue("duration", 4.0))
		Expect(m).To(HaveLen(9))
	})

	It("is empty for an empty trajectory", func() {
		Expect(epidemic.Summarize(nil, 1)).To(Equal(epidemic.Summary{}))
	})
})
