package adder_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/adder"
	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

const nProc = uint16(4)

func toPreunit(u ethereal.Unit, algo ethereal.DigestAlgorithm) ethereal.Preunit {
	return unit.NewPreunit(ethereal.UnitID(u), u.View(), u.Data(), u.RandomSourceData(), algo)
}

var _ = Describe("Adder", func() {
	var (
		cnf    config.Config
		source ethereal.Dag
		dg     ethereal.Dag
		ad     adder.Adder
	)

	BeforeEach(func() {
		cnf = config.New(0, nProc)
		source = dag.New(cnf, 0)
		tests.BuildRegularDag(source, 2, cnf.DigestAlgorithm)
		dg = dag.New(cnf, 0)
		ad = adder.New(dg, cnf, zerolog.Nop())
	})

	AfterEach(func() {
		ad.Close()
	})

	It("should add a topologically sorted batch", func() {
		units := source.UnitsAbove(nil)
		preunits := make([]ethereal.Preunit, 0, len(units))
		for height := 0; height <= 2; height++ {
			for _, u := range units {
				if u.Height() == height {
					preunits = append(preunits, toPreunit(u, cnf.DigestAlgorithm))
				}
			}
		}
		errs := ad.AddPreunits(1, preunits...)
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		Eventually(func() int { return len(dg.UnitsAbove(nil)) }).Should(Equal(len(units)))
	})

	It("should buffer a unit until its parents arrive", func() {
		dealings := make([]ethereal.Preunit, 0, nProc)
		for pid := uint16(0); pid < nProc; pid++ {
			dealings = append(dealings, toPreunit(source.GetByID(ethereal.ID(0, pid, 0))[0], cnf.DigestAlgorithm))
		}
		orphan := toPreunit(source.GetByID(ethereal.ID(1, 1, 0))[0], cnf.DigestAlgorithm)

		errs := ad.AddPreunits(1, orphan)
		Expect(errs[0]).To(BeAssignableToTypeOf(&ethereal.UnknownParents{}))
		Expect(dg.GetUnit(orphan.Hash())).To(BeNil())

		errs = ad.AddPreunits(1, dealings...)
		for _, err := range errs {
			Expect(err).NotTo(HaveOccurred())
		}
		Eventually(func() ethereal.Unit { return dg.GetUnit(orphan.Hash()) }).ShouldNot(BeNil())
	})

	It("should report duplicates", func() {
		pu := toPreunit(source.GetByID(ethereal.ID(0, 1, 0))[0], cnf.DigestAlgorithm)
		Expect(ad.AddPreunits(1, pu)).To(BeNil())
		Eventually(func() ethereal.Unit { return dg.GetUnit(pu.Hash()) }).ShouldNot(BeNil())
		errs := ad.AddPreunits(1, pu)
		Expect(errs[0]).To(BeAssignableToTypeOf(&ethereal.DuplicateUnit{}))
	})

	It("should reject units from a wrong committee or epoch", func() {
		tooBig := unit.New(0, 1, make([]ethereal.Unit, nProc), 0, ethereal.Data{}, nil, cnf.DigestAlgorithm)
		errs := ad.AddPreunits(1, toPreunit(tooBig, cnf.DigestAlgorithm))
		Expect(errs[0]).To(BeAssignableToTypeOf(&ethereal.DataError{}))
	})
})
