package tss_test

import (
	"crypto/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ChiralBehaviors/apollo/pkg/crypto/tss"
)

var _ = Describe("WeakThresholdKey", func() {
	var (
		keys []*tss.WeakThresholdKey
		msg  []byte
	)

	BeforeEach(func() {
		var err error
		keys, err = tss.GenerateKeys(10, 7, rand.Reader)
		Expect(err).NotTo(HaveOccurred())
		msg = []byte("the last timing unit of the epoch")
	})

	It("should produce shares verifiable by every key holder", func() {
		share := keys[3].CreateShare(msg)
		for _, key := range keys {
			Expect(key.VerifyShare(share, msg)).To(BeTrue())
		}
		Expect(keys[0].VerifyShare(share, []byte("other message"))).To(BeFalse())
	})

	It("should combine threshold many shares into a verifiable signature", func() {
		shares := make([]*tss.Share, 0, 7)
		for i := 0; i < 7; i++ {
			shares = append(shares, keys[i].CreateShare(msg))
		}
		sig, ok := keys[9].CombineShares(shares)
		Expect(ok).To(BeTrue())
		for _, key := range keys {
			Expect(key.VerifySignature(sig, msg)).To(BeTrue())
		}
		Expect(keys[0].VerifySignature(sig, []byte("other message"))).To(BeFalse())
	})

	It("should combine the same signature regardless of which quorum signs", func() {
		firstShares := make([]*tss.Share, 0, 7)
		lastShares := make([]*tss.Share, 0, 7)
		for i := 0; i < 7; i++ {
			firstShares = append(firstShares, keys[i].CreateShare(msg))
			lastShares = append(lastShares, keys[9-i].CreateShare(msg))
		}
		sig1, ok := keys[0].CombineShares(firstShares)
		Expect(ok).To(BeTrue())
		sig2, ok := keys[0].CombineShares(lastShares)
		Expect(ok).To(BeTrue())
		Expect(sig1.Marshal()).To(Equal(sig2.Marshal()))
	})

	It("should refuse to combine too few distinct shares", func() {
		shares := make([]*tss.Share, 0, 7)
		for i := 0; i < 7; i++ {
			shares = append(shares, keys[0].CreateShare(msg))
		}
		_, ok := keys[0].CombineShares(shares)
		Expect(ok).To(BeFalse())
	})

	It("should round-trip shares and signatures through their byte form", func() {
		share := keys[5].CreateShare(msg)
		restored := new(tss.Share)
		Expect(restored.Unmarshal(share.Marshal())).To(Succeed())
		Expect(restored.Owner()).To(Equal(uint16(5)))
		Expect(keys[0].VerifyShare(restored, msg)).To(BeTrue())

		shares := make([]*tss.Share, 0, 7)
		for i := 0; i < 7; i++ {
			shares = append(shares, keys[i].CreateShare(msg))
		}
		sig, _ := keys[0].CombineShares(shares)
		restoredSig := new(tss.Signature)
		Expect(restoredSig.Unmarshal(sig.Marshal())).To(Succeed())
		Expect(keys[0].VerifySignature(restoredSig, msg)).To(BeTrue())
	})
})
