package creator_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/creator"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
	"github.com/ChiralBehaviors/apollo/pkg/unit"
)

type testEpochProofBuilder struct{}

func (testEpochProofBuilder) Verify(ethereal.Preunit) bool            { return true }
func (testEpochProofBuilder) TryBuilding(ethereal.Unit) ethereal.Data { return nil }
func (testEpochProofBuilder) BuildShare(ethereal.Unit) ethereal.Data  { return nil }

func newCreator(cnf config.Config, send func(ethereal.Unit)) *creator.Creator {
	dataSource := tests.NewRandomDataSource(10)
	rsData := func(int, []ethereal.Unit, ethereal.EpochID) []byte { return nil }
	epochProofBuilder := func(ethereal.EpochID) creator.EpochProofBuilder {
		return testEpochProofBuilder{}
	}
	return creator.New(cnf, dataSource, send, rsData, epochProofBuilder, zerolog.Nop())
}

func foreignDealing(cnf config.Config, pid uint16) ethereal.Unit {
	return unit.New(pid, 0, make([]ethereal.Unit, cnf.NProc), 0, ethereal.Data{}, nil, cnf.DigestAlgorithm)
}

var _ = Describe("Creator", func() {
	var (
		cnf        config.Config
		unitRec    chan ethereal.Unit
		unitBelt   chan ethereal.Unit
		lastTiming chan ethereal.Unit
		cr         *creator.Creator
		wg         sync.WaitGroup
	)

	BeforeEach(func() {
		cnf = config.New(0, 4)
		unitRec = make(chan ethereal.Unit, 10)
		unitBelt = make(chan ethereal.Unit, 10)
		lastTiming = make(chan ethereal.Unit, 1)
		cr = newCreator(cnf, func(u ethereal.Unit) { unitRec <- u })
		wg.Add(1)
		go func() {
			defer wg.Done()
			cr.CreateUnits(unitBelt, lastTiming)
		}()
	})

	AfterEach(func() {
		close(unitBelt)
		wg.Wait()
	})

	Describe("having a quorum of units on the current level", func() {
		It("should create a dealing unit and then a unit on the next level", func() {
			// The dealing unit is created unprompted, before the belt moves at all.
			createdUnit := <-unitRec
			Expect(createdUnit.Creator()).To(Equal(uint16(0)))
			Expect(createdUnit.Height()).To(Equal(0))
			Expect(createdUnit.Level()).To(Equal(0))

			for pid := uint16(1); pid < cnf.NProc; pid++ {
				unitBelt <- foreignDealing(cnf, pid)
			}

			createdUnit = <-unitRec
			Expect(createdUnit.Creator()).To(Equal(uint16(0)))
			Expect(createdUnit.Height()).To(Equal(1))
			Expect(createdUnit.Level()).To(Equal(1))
			nonNil := 0
			for _, p := range createdUnit.Parents() {
				if p != nil {
					nonNil++
				}
			}
			Expect(ethereal.IsQuorum(cnf.NProc, uint16(nonNil))).To(BeTrue())
			Expect(ethereal.Predecessor(createdUnit).Creator()).To(Equal(uint16(0)))
		})
	})

	Describe("missing a quorum of units on the current level", func() {
		It("should keep quiet", func() {
			<-unitRec // the dealing unit
			unitBelt <- foreignDealing(cnf, 1)
			Consistently(unitRec).ShouldNot(Receive())
		})
	})

	Describe("with a frozen creator", func() {
		It("should ignore that creator's units", func() {
			<-unitRec // the dealing unit
			cr.FreezeParent(1)
			unitBelt <- foreignDealing(cnf, 1)
			unitBelt <- foreignDealing(cnf, 2)
			Consistently(unitRec).ShouldNot(Receive())
			unitBelt <- foreignDealing(cnf, 3)
			// Only three live creators remain, exactly a quorum.
			createdUnit := <-unitRec
			Expect(createdUnit.Level()).To(Equal(1))
			Expect(createdUnit.Parents()[1]).To(BeNil())
		})
	})

	Describe("parent consistency", func() {
		It("should hold for every created unit", func() {
			<-unitRec
			for pid := uint16(1); pid < cnf.NProc; pid++ {
				unitBelt <- foreignDealing(cnf, pid)
			}
			u := <-unitRec
			parents := u.Parents()
			for i := range parents {
				for j := range parents {
					if parents[j] == nil {
						continue
					}
					w := parents[j].Parents()[i]
					if w == nil {
						continue
					}
					Expect(parents[i]).NotTo(BeNil())
					Expect(parents[i].Level()).To(BeNumerically(">=", w.Level()))
				}
			}
		})
	})
})
