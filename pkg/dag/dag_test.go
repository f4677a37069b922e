package dag_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

const nProc = uint16(4)

var _ = Describe("Dag", func() {
	var (
		cnf config.Config
		dg  ethereal.Dag
	)

	BeforeEach(func() {
		cnf = config.New(0, nProc)
		dg = dag.New(cnf, 0)
	})

	Describe("empty", func() {
		It("should contain no units", func() {
			Expect(dg.MaxLevel()).To(Equal(-1))
			Expect(dg.UnitsAbove(nil)).To(BeEmpty())
			dg.MaximalUnitsPerProcess().Iterate(func(units []ethereal.Unit) bool {
				Expect(units).To(BeEmpty())
				return true
			})
		})
	})

	Describe("after inserting dealing units", func() {
		BeforeEach(func() {
			for pid := uint16(0); pid < nProc; pid++ {
				tests.NewDealingUnit(dg, pid, ethereal.Data{}, cnf.DigestAlgorithm)
			}
		})

		It("should find them by hash, id, height and level", func() {
			Expect(dg.MaxLevel()).To(Equal(0))
			for pid := uint16(0); pid < nProc; pid++ {
				us := dg.GetByID(ethereal.ID(0, pid, 0))
				Expect(us).To(HaveLen(1))
				Expect(dg.GetUnit(us[0].Hash())).To(Equal(us[0]))
				Expect(dg.UnitsOnHeight(0).Get(pid)).To(HaveLen(1))
				Expect(dg.PrimeUnits(0).Get(pid)).To(HaveLen(1))
			}
		})

		Describe("DecodeParents", func() {
			It("should resolve the parents of a unit on top of them", func() {
				u := tests.NewUnit(dg, 0, ethereal.Data{}, cnf.DigestAlgorithm)
				pu := unit.NewPreunit(ethereal.UnitID(u), u.View(), u.Data(), u.RandomSourceData(), cnf.DigestAlgorithm)
				parents, err := dg.DecodeParents(pu)
				Expect(err).NotTo(HaveOccurred())
				for pid := uint16(0); pid < nProc; pid++ {
					Expect(parents[pid]).NotTo(BeNil())
					Expect(parents[pid].Creator()).To(Equal(pid))
				}
			})

			It("should report missing parents", func() {
				u := tests.NewUnit(dg, 0, ethereal.Data{}, cnf.DigestAlgorithm)
				u = tests.AddUnit(dg, u)
				v := tests.NewUnit(dg, 1, ethereal.Data{}, cnf.DigestAlgorithm)
				fresh := dag.New(cnf, 0)
				pu := unit.NewPreunit(ethereal.UnitID(v), v.View(), v.Data(), v.RandomSourceData(), cnf.DigestAlgorithm)
				_, err := fresh.DecodeParents(pu)
				Expect(err).To(BeAssignableToTypeOf(&ethereal.UnknownParents{}))
				Expect(err.(*ethereal.UnknownParents).Amount).To(Equal(int(nProc)))
			})

			It("should reject a crown with a wrong control hash", func() {
				u := tests.NewUnit(dg, 0, ethereal.Data{}, cnf.DigestAlgorithm)
				badCrown := ethereal.NewCrown(u.View().Heights, &ethereal.ZeroHash)
				pu := unit.NewPreunit(ethereal.UnitID(u), badCrown, u.Data(), u.RandomSourceData(), cnf.DigestAlgorithm)
				_, err := dg.DecodeParents(pu)
				Expect(err).To(BeAssignableToTypeOf(&ethereal.ComplianceError{}))
			})
		})

		Describe("Check", func() {
			It("should accept a well-formed unit and reject one with too few parents", func() {
				u := tests.NewUnit(dg, 0, ethereal.Data{}, cnf.DigestAlgorithm)
				Expect(dg.Check(u)).To(Succeed())

				parents := make([]ethereal.Unit, nProc)
				parents[0] = dg.GetByID(ethereal.ID(0, 0, 0))[0]
				parents[1] = dg.GetByID(ethereal.ID(0, 1, 0))[0]
				thin := unit.New(0, 0, parents, ethereal.LevelFromParents(parents), ethereal.Data{}, nil, cnf.DigestAlgorithm)
				Expect(dg.Check(thin)).NotTo(Succeed())
			})
		})

		Describe("observers", func() {
			It("should fire the insert hooks synchronously", func() {
				inserted := []ethereal.Unit{}
				dg.AfterInsert(func(u ethereal.Unit) { inserted = append(inserted, u) })
				u := tests.NewUnit(dg, 0, ethereal.Data{}, cnf.DigestAlgorithm)
				tests.AddUnit(dg, u)
				Expect(inserted).To(HaveLen(1))
				Expect(*inserted[0].Hash()).To(Equal(*u.Hash()))
			})
		})
	})

	Describe("forks", func() {
		It("should keep both units and mark the creator as forking", func() {
			for pid := uint16(0); pid < nProc; pid++ {
				tests.NewDealingUnit(dg, pid, ethereal.Data{}, cnf.DigestAlgorithm)
			}
			forkers := []uint16{}
			dg.OnFork(func(pid uint16) { forkers = append(forkers, pid) })

			u1 := tests.NewUnit(dg, 1, ethereal.Data("first"), cnf.DigestAlgorithm)
			u2 := tests.NewUnit(dg, 1, ethereal.Data("second"), cnf.DigestAlgorithm)
			tests.AddUnit(dg, u1)
			tests.AddUnit(dg, u2)

			Expect(dg.IsForker(1)).To(BeTrue())
			Expect(dg.GetByID(ethereal.ID(1, 1, 0))).To(HaveLen(2))
			Expect(dg.UnitsOnHeight(1).Get(1)).To(HaveLen(2))
			Expect(forkers).To(Equal([]uint16{1}))
		})
	})
})
