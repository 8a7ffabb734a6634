package qha

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tables", func() {
	var res *Result

	BeforeEach(func() {
		var err error
		res, err = NewSolver(DefaultOptions()).Solve(context.Background(), syntheticInput(temperatureGrid(10, 100)))
		Expect(err).NotTo(HaveOccurred())
	})

	It("renders every table in order", func() {
		tables := res.Tables()
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Name
		}
		Expect(names).To(Equal(TableNames()))
	})

	It("writes one helmholtz block per temperature", func() {
		t, err := res.Table(TableHelmholtzVolume)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Blocks).To(HaveLen(res.Len()))
		Expect(t.Blocks[1].Label).To(Equal("Temperature: 10"))
		for i, b := range t.Blocks {
			Expect(b.Rows).To(HaveLen(len(res.Volumes)))
			Expect(b.Rows[0]).To(Equal([]float64{res.Volumes[0], res.Helmholtz[i][0]}))
		}
	})

	It("pairs temperatures with the derived series", func() {
		for name, series := range map[string][]float64{
			TableVolumeTemperature:      res.Volume,
			TableBulkModulusTemperature: res.BulkModulus,
			TableGruneisenTemperature:   res.Gruneisen,
		} {
			t, err := res.Table(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Columns).To(HaveLen(2))
			Expect(cmp.Diff(res.Temperatures, t.Series(0))).To(BeEmpty())
			Expect(cmp.Diff(series, t.Series(1), cmpopts.EquateNaNs())).To(BeEmpty(), name)
		}
	})

	It("rejects unknown names", func() {
		_, err := res.Table("entropy-temperature")
		Expect(err).To(MatchError(ContainSubstring("unknown table")))
	})
})

var _ = Describe("Anomalies", func() {
	It("flags unphysical fits", func() {
		res := &Result{
			Temperatures: []float64{0, 10, 20, 30},
			Volumes:      []float64{1, 2, 3},
			Fits: []TemperatureFit{
				{Temperature: 0, Params: paramsAt(2, 1)},
				{Temperature: 10, Params: paramsAt(5, 1)},
				{Temperature: 20, Params: nanParams(), Err: &FittingError{Index: 2, Temperature: 20, Wrapped: fmt.Errorf("%w: B0=-1", errImplausibleBulk)}},
				{Temperature: 30, Params: paramsAt(2, -1)},
			},
			HeatCapacityP: []float64{0, -1, nan, 1e-9},
		}

		var got []string
		for _, a := range res.Anomalies() {
			got = append(got, fmt.Sprintf("%d:%s", a.Index, a.Kind))
		}
		Expect(got).To(Equal([]string{
			"1:" + string(AnomalyVolumeOutsideSamples),
			"1:" + string(AnomalyNegativeHeatCapacity),
			"2:" + string(AnomalyNonPositiveBulk),
			"3:" + string(AnomalyNonPositiveBulk),
		}))
	})

	It("is empty without volumes", func() {
		Expect((&Result{}).Anomalies()).To(BeEmpty())
	})
})

var _ = Describe("FilterImaginary", func() {
	var in Input

	BeforeEach(func() {
		in = syntheticInput([]float64{0, 10})
		for v := range in.Thermal {
			in.Thermal[v].NumModes = 10
			in.Thermal[v].NumIntegratedModes = 10
		}
		in.Thermal[1].NumIntegratedModes = 7
		in.Thermal[6].NumIntegratedModes = 5
	})

	It("tolerates counts below the threshold", func() {
		Expect(Flagged(in.Thermal[1], DefaultImaginaryThreshold)).To(BeFalse())
		Expect(Flagged(in.Thermal[6], DefaultImaginaryThreshold)).To(BeTrue())
	})

	It("drops flagged volumes when excluding", func() {
		res := FilterImaginary(in, 0, true)
		Expect(res.Excluded).To(Equal([]int{6}))
		Expect(res.Kept).To(HaveLen(9))
		Expect(res.Warnings).To(BeEmpty())
		Expect(res.Input.Static.Volumes).To(HaveLen(9))
		Expect(res.Input.Thermal).To(HaveLen(9))
	})

	It("returns an owned copy", func() {
		res := FilterImaginary(in, 0, false)
		res.Input.Thermal[0].FreeEnergy[1] = 42
		res.Input.Static.Energies[0] = 42
		Expect(in.Thermal[0].FreeEnergy[1]).NotTo(Equal(42.0))
		Expect(in.Static.Energies[0]).NotTo(Equal(42.0))
	})

	It("honours a custom threshold", func() {
		res := FilterImaginary(in, 3, true)
		Expect(res.Excluded).To(Equal([]int{1, 6}))
	})
})
