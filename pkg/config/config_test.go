package config_test

import (
	"crypto/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
)

var _ = Describe("Config", func() {
	It("should accept the defaults for a sane committee", func() {
		Expect(config.Valid(config.New(0, 4))).To(Succeed())
		Expect(config.Valid(config.New(16, 50))).To(Succeed())
	})

	It("should reject a committee too small to tolerate a failure", func() {
		Expect(config.Valid(config.New(0, 3))).NotTo(Succeed())
	})

	It("should reject a pid outside the committee", func() {
		Expect(config.Valid(config.New(4, 4))).NotTo(Succeed())
	})

	It("should reject an empty epoch", func() {
		cnf := config.New(0, 4)
		cnf.EpochLength = 0
		Expect(config.Valid(cnf)).NotTo(Succeed())
	})

	It("should require a threshold key for multi-epoch runs", func() {
		cnf := config.New(0, 4)
		cnf.NumberOfEpochs = 2
		Expect(config.Valid(cnf)).NotTo(Succeed())

		keys, err := tss.GenerateKeys(4, ethereal.MinimalQuorum(4), rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		cnf.WTKey = keys[0]
		Expect(config.Valid(cnf)).To(Succeed())
	})

	It("should reject a threshold key weaker than a quorum", func() {
		cnf := config.New(0, 4)
		cnf.NumberOfEpochs = 2
		keys, err := tss.GenerateKeys(4, 2, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		cnf.WTKey = keys[0]
		Expect(config.Valid(cnf)).NotTo(Succeed())
	})

	It("should derive the last level from the start level and the epoch length", func() {
		cnf := config.New(0, 4)
		cnf.OrderStartLevel = 2
		cnf.EpochLength = 5
		Expect(cnf.LastLevel()).To(Equal(6))
	})
})
