package qha

import (
	"math"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var nan = math.NaN()

var approx = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-12)}

var _ = Describe("gradient", func() {
	It("is exact for a quadratic on a non-uniform grid", func() {
		x := []float64{0, 1, 3, 6}
		y := []float64{0, 1, 9, 36}
		Expect(cmp.Diff([]float64{1, 2, 6, 9}, gradient(x, y), approx)).To(BeEmpty())
	})

	It("falls back to one-sided differences next to missing samples", func() {
		x := []float64{0, 1, 2, 3, 4}
		y := []float64{0, 1, nan, 9, 16}
		Expect(cmp.Diff([]float64{1, 1, nan, 7, 7}, gradient(x, y), approx)).To(BeEmpty())
	})

	It("leaves isolated samples missing", func() {
		got := gradient([]float64{0, 1, 2}, []float64{nan, 1, nan})
		Expect(cmp.Diff([]float64{nan, nan, nan}, got, approx)).To(BeEmpty())
	})

	It("handles a single point", func() {
		Expect(Missing(gradient([]float64{5}, []float64{1})[0])).To(BeTrue())
	})
})

var _ = DescribeTable("window",
	func(i, half, n, wantLo, wantHi int) {
		lo, hi := window(i, half, n)
		Expect([]int{lo, hi}).To(Equal([]int{wantLo, wantHi}))
	},
	Entry("centred", 50, 5, 101, 45, 56),
	Entry("clamped at the start", 0, 5, 101, 0, 11),
	Entry("clamped at the end", 100, 5, 101, 90, 101),
	Entry("wider than the grid", 3, 5, 8, 0, 8),
)

var _ = Describe("polyfitHeatCapacity", func() {
	It("recovers -T·G'' for a quadratic G", func() {
		temps := temperatureGrid(10, 200)
		gibbs := make([]float64, len(temps))
		for i, t := range temps {
			gibbs[i] = 1 - 1e-4*t*t
		}
		got := polyfitHeatCapacity(temps, gibbs, DefaultPolyfitWindow, DefaultPolyfitDegree)
		for i, t := range temps {
			Expect(got[i]).To(BeNumerically("~", 2e-4*t, 1e-9), "T=%g", t)
		}
	})

	It("recovers a cubic G from a four point grid", func() {
		temps := []float64{0, 100, 200, 300}
		gibbs := make([]float64, len(temps))
		for i, t := range temps {
			gibbs[i] = -0.5 - 1e-5*t*t + 1e-9*t*t*t
		}
		got := polyfitHeatCapacity(temps, gibbs, DefaultPolyfitWindow, DefaultPolyfitDegree)
		for i, t := range temps {
			Expect(got[i]).To(BeNumerically("~", -t*(6e-9*t-2e-5), 1e-9), "T=%g", t)
		}
	})

	It("leaves windows below a cubic missing", func() {
		temps := []float64{0, 300}
		got := polyfitHeatCapacity(temps, []float64{-0.5, -0.6}, DefaultPolyfitWindow, DefaultPolyfitDegree)
		Expect(Missing(got[0])).To(BeTrue())
		Expect(Missing(got[1])).To(BeTrue())

		temps = []float64{0, 100, 200}
		got = polyfitHeatCapacity(temps, []float64{-0.5, -0.6, -0.9}, DefaultPolyfitWindow, DefaultPolyfitDegree)
		for _, v := range got {
			Expect(Missing(v)).To(BeTrue())
		}
	})

	It("skips missing samples when counting points", func() {
		temps := []float64{0, 10, 20, 30}
		gibbs := []float64{0, nan, nan, -0.09}
		got := polyfitHeatCapacity(temps, gibbs, DefaultPolyfitWindow, DefaultPolyfitDegree)
		for _, v := range got {
			Expect(Missing(v)).To(BeTrue())
		}
	})
})

var _ = Describe("volumeExpansion", func() {
	It("is relative to the nearest valid temperature", func() {
		temps := []float64{0, 100, 295, 310}
		volumes := []float64{1, 1.1, 1.2, 1.3}
		got := volumeExpansion(temps, volumes, 300)
		Expect(got[2]).To(Equal(0.0))
		Expect(got[3]).To(BeNumerically("~", math.Cbrt(1.3/1.2)-1, 1e-15))
		Expect(got[0]).To(BeNumerically("<", 0))
	})

	It("skips a missing reference", func() {
		temps := []float64{0, 100, 300, 400}
		volumes := []float64{1, 1.1, nan, 1.3}
		Expect(referenceIndex(temps, volumes, 300)).To(Equal(3))
		got := volumeExpansion(temps, volumes, 300)
		Expect(got[3]).To(Equal(0.0))
		Expect(Missing(got[2])).To(BeTrue())
	})

	It("is all missing without a successful fit", func() {
		got := volumeExpansion([]float64{0, 1}, []float64{nan, nan}, 300)
		Expect(cmp.Diff([]float64{nan, nan}, got, approx)).To(BeEmpty())
	})
})
