package tlsfront_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/tlsfront"
)

var _ = Describe("Config", func() {
	It("reports disabled when cert/key files are not set", func() {
		var c tlsfront.Config
		Expect(c.Enabled()).To(BeFalse())
	})

	It("degrades gracefully: Build on a disabled config returns nil, nil", func() {
		cfg, err := tlsfront.Build(tlsfront.Config{})
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg).To(BeNil())
	})

	It("rejects an unknown cipher suite name", func() {
		_, err := tlsfront.Build(tlsfront.Config{
			CertFile:   "testdata/does-not-matter.pem",
			KeyFile:    "testdata/does-not-matter.key",
			CipherList: []string{"NOT_A_REAL_SUITE"},
		})
		Expect(err).To(HaveOccurred())
	})
})
