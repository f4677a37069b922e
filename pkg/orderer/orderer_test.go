package orderer_test

import (
	"crypto/rand"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/ChiralBehaviors/apollo/pkg/config"
	"github.com/ChiralBehaviors/apollo/pkg/ethereal"
	"github.com/ChiralBehaviors/apollo/pkg/orderer"
	"github.com/ChiralBehaviors/apollo/pkg/tests"
)

// preloaded builds per-process deterministic payloads, count pieces each.
func preloaded(nProc uint16, count int) []ethereal.DataSource {
	result := make([]ethereal.DataSource, nProc)
	for pid := uint16(0); pid < nProc; pid++ {
		data := make([]ethereal.Data, count)
		for i := range data {
			data[i] = ethereal.Data(fmt.Sprintf("msg-%d-%d", pid, i))
		}
		result[pid] = tests.NewPreloadedDataSource(data)
	}
	return result
}

func expectIdenticalStreams(blocks [][]*ethereal.Preblock, count int) {
	for pid := range blocks {
		Expect(blocks[pid]).To(HaveLen(count))
	}
	for k := 0; k < count; k++ {
		reference := blocks[0][k]
		for pid := 1; pid < len(blocks); pid++ {
			pb := blocks[pid][k]
			Expect(pb.RandomBytes).To(Equal(reference.RandomBytes))
			Expect(pb.Data).To(HaveLen(len(reference.Data)))
			for i := range pb.Data {
				Expect(pb.Data[i]).To(Equal(reference.Data[i]))
			}
		}
	}
}

var _ = Describe("Orderer", func() {
	Describe("construction", func() {
		It("should fail on an unusable configuration", func() {
			_, err := orderer.New(config.New(0, 2), nil, nil, nil, zerolog.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("should start and stop idempotently", func() {
			ord, err := orderer.New(config.New(0, 4), nil, nil, nil, zerolog.Nop())
			Expect(err).NotTo(HaveOccurred())
			ord.Start()
			ord.Start()
			ord.Stop()
			ord.Stop()
		})
	})

	Describe("a four process committee over a single epoch", func() {
		const epochLength = 5

		It("should produce identical preblock streams on every process", func() {
			nProc := uint16(4)
			configs := make([]config.Config, nProc)
			for pid := uint16(0); pid < nProc; pid++ {
				cnf := config.New(pid, nProc)
				cnf.EpochLength = epochLength
				configs[pid] = cnf
			}
			committee, err := tests.NewCommittee(configs, preloaded(nProc, 100))
			Expect(err).NotTo(HaveOccurred())
			committee.Start()
			defer committee.Stop()

			Eventually(func() int {
				least := -1
				for _, blocks := range committee.Preblocks() {
					if least == -1 || len(blocks) < least {
						least = len(blocks)
					}
				}
				return least
			}, 30*time.Second, 100*time.Millisecond).Should(BeNumerically(">=", epochLength))

			expectIdenticalStreams(committee.Preblocks(), epochLength)
		})

		It("should order every payload at most once", func() {
			nProc := uint16(4)
			configs := make([]config.Config, nProc)
			for pid := uint16(0); pid < nProc; pid++ {
				cnf := config.New(pid, nProc)
				cnf.EpochLength = epochLength
				configs[pid] = cnf
			}
			committee, err := tests.NewCommittee(configs, preloaded(nProc, 100))
			Expect(err).NotTo(HaveOccurred())
			committee.Start()
			defer committee.Stop()

			Eventually(func() int {
				return len(committee.Preblocks()[0])
			}, 30*time.Second, 100*time.Millisecond).Should(Equal(epochLength))

			seen := make(map[string]bool)
			for _, pb := range committee.Preblocks()[0] {
				for _, data := range pb.Data {
					if len(data) == 0 {
						continue
					}
					Expect(seen[string(data)]).To(BeFalse(), "payload ordered twice: %s", string(data))
					seen[string(data)] = true
				}
			}
		})
	})

	Describe("a four process committee over two epochs", func() {
		const epochLength = 3

		It("should advance epochs through threshold shares and stay identical", func() {
			nProc := uint16(4)
			configs, err := tests.CommitteeConfigs(nProc, 2, epochLength, rand.Reader)
			Expect(err).NotTo(HaveOccurred())
			committee, err := tests.NewCommittee(configs, preloaded(nProc, 100))
			Expect(err).NotTo(HaveOccurred())
			committee.Start()
			defer committee.Stop()

			Eventually(func() int {
				least := -1
				for _, blocks := range committee.Preblocks() {
					if least == -1 || len(blocks) < least {
						least = len(blocks)
					}
				}
				return least
			}, 60*time.Second, 100*time.Millisecond).Should(BeNumerically(">=", 2*epochLength))

			expectIdenticalStreams(committee.Preblocks(), 2*epochLength)
		})
	})
})
