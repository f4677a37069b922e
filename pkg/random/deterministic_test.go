package random_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/random"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
)

var _ = Describe("Deterministic random source", func() {
	var (
		cnf config.Config
		dg  ethereal.Dag
		rs  ethereal.RandomSource
	)

	BeforeEach(func() {
		cnf = config.New(0, 4)
		dg = dag.New(cnf, 0)
		rs = random.NewFactory().NewRandomSource(dg)
	})

	It("should contribute no data to units", func() {
		data, err := rs.DataToInclude(0, nil, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(BeEmpty())
	})

	It("should reveal no bytes for levels the dag has not reached", func() {
		Expect(rs.RandomBytes(0, 0)).To(BeNil())
		tests.BuildRegularDag(dg, 2, cnf.DigestAlgorithm)
		Expect(rs.RandomBytes(0, 3)).To(BeNil())
	})

	It("should derive identical bytes from identical dags", func() {
		tests.BuildRegularDag(dg, 3, cnf.DigestAlgorithm)
		other := dag.New(cnf, 0)
		tests.BuildRegularDag(other, 3, cnf.DigestAlgorithm)
		otherRs := random.NewFactory().NewRandomSource(other)
		for level := 0; level <= 3; level++ {
			for pid := uint16(0); pid < 4; pid++ {
				bytes := rs.RandomBytes(pid, level)
				Expect(bytes).To(HaveLen(32))
				Expect(otherRs.RandomBytes(pid, level)).To(Equal(bytes))
			}
		}
	})

	It("should produce different bytes for different levels and processes", func() {
		tests.BuildRegularDag(dg, 2, cnf.DigestAlgorithm)
		Expect(rs.RandomBytes(0, 1)).NotTo(Equal(rs.RandomBytes(0, 2)))
		Expect(rs.RandomBytes(0, 1)).NotTo(Equal(rs.RandomBytes(1, 1)))
	})
})
