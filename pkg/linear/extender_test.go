package linear_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/linear"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
)

// collectRounds builds a regular dag with the given number of levels and runs the
// extender on it, collecting every round it produces.
func collectRounds(cnf config.Config, levels int) [][]ethereal.Unit {
	dg := dag.New(cnf, 0)
	tests.BuildRegularDag(dg, levels, cnf.DigestAlgorithm)
	output := make(chan []ethereal.Unit, levels+1)
	ext := linear.NewExtender(dg, tests.NewTestRandomSource(), cnf, output, zerolog.Nop())
	ext.Notify()

	rounds := [][]ethereal.Unit{}
	for {
		select {
		case round := <-output:
			rounds = append(rounds, round)
		case <-time.After(time.Second):
			ext.Close()
			return rounds
		}
	}
}

var _ = Describe("Extender", func() {
	var cnf config.Config

	BeforeEach(func() {
		cnf = config.New(0, 4)
	})

	Context("on an empty dag", func() {
		It("should produce no rounds", func() {
			dg := dag.New(cnf, 0)
			output := make(chan []ethereal.Unit, 1)
			ext := linear.NewExtender(dg, tests.NewTestRandomSource(), cnf, output, zerolog.Nop())
			ext.Notify()
			Consistently(output).ShouldNot(Receive())
			ext.Close()
		})
	})

	Context("on a dag with only dealing units", func() {
		It("should produce no rounds", func() {
			dg := dag.New(cnf, 0)
			for pid := uint16(0); pid < 4; pid++ {
				tests.NewDealingUnit(dg, pid, ethereal.Data{}, cnf.DigestAlgorithm)
			}
			output := make(chan []ethereal.Unit, 1)
			ext := linear.NewExtender(dg, tests.NewTestRandomSource(), cnf, output, zerolog.Nop())
			ext.Notify()
			Consistently(output).ShouldNot(Receive())
			ext.Close()
		})
	})

	Context("on a regular dag with ten levels", func() {
		It("should decide timing units for a prefix of levels, in strictly increasing order", func() {
			rounds := collectRounds(cnf, 10)
			Expect(len(rounds)).To(BeNumerically(">=", 5))
			lastLevel := -1
			for _, round := range rounds {
				timingUnit := round[len(round)-1]
				Expect(timingUnit.Level()).To(BeNumerically(">", lastLevel))
				lastLevel = timingUnit.Level()
			}
		})

		It("should order every unit exactly once", func() {
			rounds := collectRounds(cnf, 10)
			seen := make(map[ethereal.Hash]bool)
			for _, round := range rounds {
				for _, u := range round {
					Expect(seen[*u.Hash()]).To(BeFalse())
					seen[*u.Hash()] = true
				}
			}
			// Every unit in the past of the last timing unit must have been ordered.
			lastTU := rounds[len(rounds)-1][len(rounds[len(rounds)-1])-1]
			total := 0
			for _, u := range dagUnits(cnf, 10) {
				if ethereal.Above(lastTU, u) {
					total++
				}
			}
			Expect(len(seen)).To(Equal(total))
		})

		It("should produce the same order on independent replays", func() {
			first := collectRounds(cnf, 10)
			second := collectRounds(cnf, 10)
			Expect(len(first)).To(Equal(len(second)))
			for i := range first {
				Expect(len(first[i])).To(Equal(len(second[i])))
				for j := range first[i] {
					Expect(*first[i][j].Hash()).To(Equal(*second[i][j].Hash()))
				}
			}
		})
	})
})

// dagUnits rebuilds the regular dag used in the tests and returns all its units.
func dagUnits(cnf config.Config, levels int) []ethereal.Unit {
	dg := dag.New(cnf, 0)
	tests.BuildRegularDag(dg, levels, cnf.DigestAlgorithm)
	return dg.UnitsAbove(nil)
}
