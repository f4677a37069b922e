package encoding_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/dag"
	"github.com/ChiralBehaviors/apollo/pkg/encoding"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
)

var _ = Describe("Encoding", func() {
	var (
		cnf config.Config
		dg  ethereal.Dag
	)

	BeforeEach(func() {
		cnf = config.New(0, 4)
		dg = dag.New(cnf, 0)
		tests.BuildRegularDag(dg, 2, cnf.DigestAlgorithm)
	})

	Describe("a single unit", func() {
		It("should decode to a preunit with the same hash, crown and payload", func() {
			u := dg.GetByID(ethereal.ID(1, 2, 0))[0]
			encoded, err := encoding.EncodeUnit(u)
			Expect(err).NotTo(HaveOccurred())
			pu, err := encoding.DecodePreunit(encoded, cnf.DigestAlgorithm)
			Expect(err).NotTo(HaveOccurred())
			Expect(*pu.Hash()).To(Equal(*u.Hash()))
			Expect(pu.Creator()).To(Equal(u.Creator()))
			Expect(pu.Height()).To(Equal(u.Height()))
			Expect(pu.EpochID()).To(Equal(u.EpochID()))
			Expect(pu.View().Equal(u.View())).To(BeTrue())
			Expect(pu.Data()).To(Equal(u.Data()))
		})

		It("should encode equal units to equal bytes", func() {
			u := dg.GetByID(ethereal.ID(1, 2, 0))[0]
			encoded1, _ := encoding.EncodeUnit(u)
			encoded2, _ := encoding.EncodeUnit(u)
			Expect(encoded1).To(Equal(encoded2))
		})
	})

	Describe("a chunk of units", func() {
		It("should deliver every unit with parents before children", func() {
			units := dg.UnitsAbove(nil)
			var buf bytes.Buffer
			Expect(encoding.SendChunk(units, &buf)).To(Succeed())
			preunits, err := encoding.ReceiveChunk(&buf, cnf.DigestAlgorithm)
			Expect(err).NotTo(HaveOccurred())
			Expect(preunits).To(HaveLen(len(units)))

			received := dag.New(cnf, 0)
			for _, pu := range preunits {
				parents, err := received.DecodeParents(pu)
				Expect(err).NotTo(HaveOccurred())
				received.Insert(received.BuildUnit(pu, parents))
			}
			Expect(received.UnitsAbove(nil)).To(HaveLen(len(units)))
		})
	})
})
