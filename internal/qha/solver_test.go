package qha

import (
	"context"
	"errors"
	"math"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/fit"
)

var _ = Describe("Solver", func() {
	var (
		ctx   context.Context
		temps []float64
		in    Input
		opts  Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		temps = temperatureGrid(10, 1000)
		in = syntheticInput(temps)
		opts = DefaultOptions()
	})

	solve := func() (*Result, error) {
		return NewSolver(opts).Solve(ctx, in)
	}

	Context("on a well-behaved system", func() {
		var res *Result

		BeforeEach(func() {
			var err error
			res, err = solve()
			Expect(err).NotTo(HaveOccurred())
		})

		It("fits every temperature", func() {
			Expect(res.Len()).To(Equal(len(temps)))
			Expect(res.Failures).To(BeEmpty())
			for i := range res.Fits {
				Expect(res.Valid(i)).To(BeTrue())
			}
		})

		It("recovers the static minimum at T = 0", func() {
			Expect(res.Volume[0]).To(BeNumerically("~", staticParams.V0, 1e-6*staticParams.V0))
			Expect(res.Gibbs[0]).To(BeNumerically("~", staticParams.E0, 1e-9))
			gpa := staticParams.B0 * DefaultConstants().EVAngstromToGPa
			Expect(res.BulkModulus[0]).To(BeNumerically("~", gpa, 1e-4*gpa))
			Expect(res.BulkModulusPrime[0]).To(BeNumerically("~", staticParams.B0Prime, 1e-3))
		})

		It("expands monotonically with temperature", func() {
			for i := 1; i < res.Len(); i++ {
				Expect(res.Volume[i]).To(BeNumerically(">=", res.Volume[i-1]-1e-9))
				Expect(res.ThermalExpansion[i]).To(BeNumerically(">=", -1e-12))
			}
			Expect(res.Volume[res.Len()-1]).To(BeNumerically(">", staticParams.V0))
		})

		It("interpolates entropy and Cv to the equilibrium volume", func() {
			c := DefaultConstants()
			i := indexOf(temps, 500)
			g := 1 + phononC*(res.Volume[i]-phononVr)
			want := c.EvToJmol(2 * phononA * 500 * g)
			Expect(res.Entropy[i]).To(BeNumerically("~", want, 1e-6*want))
			Expect(res.HeatCapacityV[i]).To(BeNumerically("~", want, 1e-6*want))
		})

		It("agrees on Cp between the numerical and polynomial methods", func() {
			c := DefaultConstants()
			for _, t := range []float64{300, 500, 800} {
				i := indexOf(temps, t)
				g := 1 + phononC*(res.Volume[i]-phononVr)
				dv := (res.Volume[i+1] - res.Volume[i-1]) / 20
				want := c.EvToJmol(2*phononA*t*g + 2*phononA*t*t*phononC*dv)
				Expect(res.HeatCapacityP[i]).To(BeNumerically("~", want, 0.02*want), "numerical Cp at %g K", t)
				Expect(res.HeatCapacityPPolyfit[i]).To(BeNumerically("~", want, 0.02*want), "polyfit Cp at %g K", t)
			}
		})

		It("reports the Grüneisen parameter of the phonon model", func() {
			Expect(Missing(res.Gruneisen[0])).To(BeTrue())
			i := indexOf(temps, 500)
			v := res.Volume[i]
			want := phononC * v / (1 + phononC*(v-phononVr))
			Expect(res.Gruneisen[i]).To(BeNumerically("~", want, 0.05*want))
		})

		It("measures volume expansion from 300 K", func() {
			i := indexOf(temps, 300)
			Expect(res.ReferenceIndex(DefaultReferenceTemperature)).To(Equal(i))
			Expect(res.VolumeExpansion[i]).To(BeNumerically("~", 0, 1e-15))
			Expect(res.VolumeExpansion[0]).To(BeNumerically("<", 0))
		})

		It("reports no anomalies", func() {
			Expect(res.Anomalies()).To(BeEmpty())
		})
	})

	It("leaves the caller's input untouched", func() {
		before := in.Clone()
		opts.EnergyShift = 2
		opts.TMax = 300
		_, err := solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(cmp.Diff(before, in)).To(BeEmpty())
	})

	It("gives the same answer in parallel and sequential mode", func() {
		seq, err := solve()
		Expect(err).NotTo(HaveOccurred())

		opts.Parallel = true
		opts.Workers = 4
		par, err := solve()
		Expect(err).NotTo(HaveOccurred())

		for i := range seq.Volume {
			Expect(par.Volume[i]).To(BeNumerically("~", seq.Volume[i], 1e-7*seq.Volume[i]))
			Expect(par.Gibbs[i]).To(BeNumerically("~", seq.Gibbs[i], 1e-9))
		}
	})

	It("truncates the grid at TMax", func() {
		opts.TMax = 500
		res, err := solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Len()).To(Equal(51))
		Expect(res.Temperatures[res.Len()-1]).To(Equal(500.0))
	})

	It("keeps the first temperature when TMax is below the grid", func() {
		in = syntheticInput([]float64{100, 200})
		opts.TMax = 50
		res, err := solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Temperatures).To(Equal([]float64{100}))
	})

	It("subtracts the energy shift from G only", func() {
		in = syntheticInput(temperatureGrid(50, 500))
		base, err := solve()
		Expect(err).NotTo(HaveOccurred())

		opts.EnergyShift = 1.5
		shifted, err := solve()
		Expect(err).NotTo(HaveOccurred())
		for i := range base.Gibbs {
			Expect(shifted.Gibbs[i]).To(BeNumerically("~", base.Gibbs[i]-1.5, 1e-8))
			Expect(shifted.Volume[i]).To(BeNumerically("~", base.Volume[i], 1e-7))
		}
	})

	It("compresses the cell under pressure", func() {
		in = syntheticInput([]float64{0, 100})
		opts.Pressure = 5
		res, err := solve()
		Expect(err).NotTo(HaveOccurred())

		v0 := res.Volume[0]
		Expect(v0).To(BeNumerically("<", staticParams.V0))
		c := DefaultConstants()
		Expect(eos.Vinet.Pressure(v0, staticParams) * c.EVAngstromToGPa).To(BeNumerically("~", 5, 5e-3))
		wantG := eos.Vinet.Energy(v0, staticParams) + c.GPaToEvA3(5)*v0
		Expect(res.Gibbs[0]).To(BeNumerically("~", wantG, 1e-5))
	})

	It("marks a temperature whose fit fails and carries on", func() {
		i := indexOf(temps, 500)
		for v := range in.Thermal {
			in.Thermal[v].FreeEnergy[i] = math.NaN()
		}
		res, err := solve()
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Failures).To(HaveLen(1))
		var fe *FittingError
		Expect(errors.As(res.Failures[0], &fe)).To(BeTrue())
		Expect(fe.Temperature).To(Equal(500.0))
		Expect(errors.Is(fe, fit.ErrNonFinite)).To(BeTrue())

		for _, series := range [][]float64{res.Volume, res.ThermalExpansion, res.HeatCapacityP, res.HeatCapacityPPolyfit, res.Gruneisen} {
			Expect(Missing(series[i])).To(BeTrue())
		}
		Expect(Missing(res.Volume[i+1])).To(BeFalse())
		Expect(Missing(res.ThermalExpansion[i-1])).To(BeFalse())
		Expect(Missing(res.HeatCapacityP[i+1])).To(BeFalse())

		anomalies := res.Anomalies()
		Expect(anomalies).To(HaveLen(1))
		Expect(anomalies[0].Kind).To(Equal(AnomalyFitFailed))
		Expect(anomalies[0].Temperature).To(Equal(500.0))
	})

	It("fails when every fit fails", func() {
		for v := range in.Thermal {
			for i := range in.Thermal[v].FreeEnergy {
				in.Thermal[v].FreeEnergy[i] = math.NaN()
			}
		}
		_, err := solve()
		Expect(err).To(MatchError(ErrAllFitsFailed))
		Expect(errors.Is(err, fit.ErrNonFinite)).To(BeTrue())
	})

	It("fails on too few volumes", func() {
		in = in.Subset([]int{0, 4, 9})
		_, err := solve()
		Expect(err).To(MatchError(ErrAllFitsFailed))
		Expect(errors.Is(err, ErrDegenerateFit)).To(BeTrue())
		var w *DegenerateFitWarning
		Expect(errors.As(err, &w)).To(BeTrue())
		Expect(w.Volumes).To(Equal(3))
	})

	It("stops when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ctx = cctx
		_, err := solve()
		Expect(err).To(MatchError(context.Canceled))

		opts.Parallel = true
		_, err = solve()
		Expect(err).To(MatchError(context.Canceled))
	})

	Context("with imaginary modes", func() {
		BeforeEach(func() {
			for v := range in.Thermal {
				in.Thermal[v].NumModes = 10
				in.Thermal[v].NumIntegratedModes = 10
			}
			in.Thermal[2].NumIntegratedModes = 7
			in.Thermal[5].NumIntegratedModes = 5
		})

		It("excludes flagged volumes and logs them", func() {
			core, logs := observer.New(zapcore.InfoLevel)
			opts.ExcludeImaginary = true
			opts.Logger = zap.New(core)
			res, err := solve()
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Excluded).To(Equal([]int{5}))
			Expect(res.Volumes).To(HaveLen(9))
			Expect(res.Volumes).NotTo(ContainElement(in.Static.Volumes[5]))
			Expect(logs.FilterMessage("excluding volume with imaginary modes").Len()).To(Equal(1))
		})

		It("warns and keeps them otherwise", func() {
			res, err := solve()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Excluded).To(BeEmpty())
			Expect(res.Volumes).To(HaveLen(10))
			Expect(res.Warnings).To(HaveLen(1))
			Expect(res.Warnings[0]).To(MatchError(ErrImaginaryModes))
			var w *ImaginaryModeWarning
			Expect(errors.As(res.Warnings[0], &w)).To(BeTrue())
			Expect(w.Index).To(Equal(5))
			Expect(w.Count).To(Equal(5))
		})

		It("fails when exclusion leaves too few volumes", func() {
			for _, v := range []int{0, 1, 3, 4, 6, 7} {
				in.Thermal[v].NumIntegratedModes = 0
			}
			opts.ExcludeImaginary = true
			_, err := solve()
			Expect(errors.Is(err, ErrDegenerateFit)).To(BeTrue())
		})
	})
})

var _ = Describe("Validate", func() {
	var in Input

	BeforeEach(func() {
		in = syntheticInput([]float64{0, 10, 20})
	})

	It("accepts consistent input", func() {
		Expect(Validate(in)).To(Succeed())
	})

	It("rejects a short energy list", func() {
		in.Static.Energies = in.Static.Energies[:9]
		err := Validate(in)
		Expect(err).To(MatchError(ErrInputMismatch))
		var me *InputMismatchError
		Expect(errors.As(err, &me)).To(BeTrue())
		Expect(me.Want).To(Equal(10))
		Expect(me.Got).To(Equal(9))
	})

	It("rejects a missing thermal record", func() {
		in.Thermal = in.Thermal[:9]
		Expect(Validate(in)).To(MatchError(ErrInputMismatch))
	})

	It("rejects an empty input", func() {
		Expect(Validate(Input{})).To(MatchError(ErrInputMismatch))
	})

	It("rejects a non-ascending grid", func() {
		for v := range in.Thermal {
			in.Thermal[v].Temperatures = []float64{0, 20, 10}
		}
		Expect(Validate(in)).To(MatchError(ErrInputMismatch))
	})

	It("rejects records on different grids", func() {
		in.Thermal[3].Temperatures = []float64{0, 10, 30}
		Expect(Validate(in)).To(MatchError(ErrInputMismatch))
	})

	It("rejects a short series", func() {
		in.Thermal[4].Entropy = in.Thermal[4].Entropy[:2]
		Expect(Validate(in)).To(MatchError(ContainSubstring("entropy of record 4")))
	})
})
