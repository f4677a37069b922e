package unit_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

const nProc = uint16(4)

func dealing(creator uint16) ethereal.Unit {
	return unit.New(creator, 0, make([]ethereal.Unit, nProc), 0, ethereal.Data{}, nil, ethereal.Shake128)
}

var _ = Describe("Preunit", func() {
	Describe("NewPreunit", func() {
		It("should expose the attributes it was built from", func() {
			crown := ethereal.EmptyCrown(nProc, ethereal.Shake128)
			data := ethereal.Data("payload")
			pu := unit.NewPreunit(ethereal.ID(0, 2, 1), crown, data, []byte{1, 2}, ethereal.Shake128)
			Expect(pu.Creator()).To(Equal(uint16(2)))
			Expect(pu.Height()).To(Equal(0))
			Expect(pu.EpochID()).To(Equal(ethereal.EpochID(1)))
			Expect(pu.Data()).To(Equal(data))
			Expect(pu.RandomSourceData()).To(Equal([]byte{1, 2}))
			Expect(pu.View().Equal(crown)).To(BeTrue())
		})
		It("should panic when the id and the crown disagree on the height", func() {
			crown := ethereal.EmptyCrown(nProc, ethereal.Shake128)
			Expect(func() {
				unit.NewPreunit(ethereal.ID(1, 2, 0), crown, nil, nil, ethereal.Shake128)
			}).To(Panic())
		})
		It("should hash identical content identically and different content differently", func() {
			crown := ethereal.EmptyCrown(nProc, ethereal.Shake128)
			pu1 := unit.NewPreunit(ethereal.ID(0, 1, 0), crown, ethereal.Data("a"), nil, ethereal.Shake128)
			pu2 := unit.NewPreunit(ethereal.ID(0, 1, 0), crown, ethereal.Data("a"), nil, ethereal.Shake128)
			pu3 := unit.NewPreunit(ethereal.ID(0, 1, 0), crown, ethereal.Data("b"), nil, ethereal.Shake128)
			Expect(*pu1.Hash()).To(Equal(*pu2.Hash()))
			Expect(*pu1.Hash()).NotTo(Equal(*pu3.Hash()))
		})
	})
})

var _ = Describe("Unit", func() {
	Describe("a dealing unit", func() {
		It("should have height zero, level zero and no predecessor", func() {
			u := dealing(0)
			Expect(u.Height()).To(Equal(0))
			Expect(u.Level()).To(Equal(0))
			Expect(ethereal.Dealing(u)).To(BeTrue())
			Expect(ethereal.Predecessor(u)).To(BeNil())
		})
	})

	Describe("a unit above a quorum of dealing units", func() {
		var u ethereal.Unit
		BeforeEach(func() {
			parents := []ethereal.Unit{dealing(0), dealing(1), dealing(2), nil}
			u = unit.New(0, 0, parents, ethereal.LevelFromParents(parents), ethereal.Data{}, nil, ethereal.Shake128)
		})
		It("should be on level one at height one", func() {
			Expect(u.Height()).To(Equal(1))
			Expect(u.Level()).To(Equal(1))
			Expect(ethereal.Predecessor(u)).NotTo(BeNil())
			Expect(ethereal.Predecessor(u).Creator()).To(Equal(uint16(0)))
		})
		It("should be above its parents and not above other units", func() {
			for _, p := range u.Parents() {
				if p != nil {
					Expect(ethereal.Above(u, p)).To(BeTrue())
					Expect(ethereal.Above(p, u)).To(BeFalse())
				}
			}
			Expect(ethereal.Above(u, dealing(3))).To(BeFalse())
		})
		It("should commit to its parents through the crown", func() {
			Expect(u.View().Heights).To(Equal([]int{0, 0, 0, -1}))
		})
	})

	Describe("LevelFromParents", func() {
		It("should increment the level only with a quorum on the maximal one", func() {
			parents := []ethereal.Unit{dealing(0), dealing(1), nil, nil}
			Expect(ethereal.LevelFromParents(parents)).To(Equal(0))
			parents[2] = dealing(2)
			Expect(ethereal.LevelFromParents(parents)).To(Equal(1))
		})
	})
})
