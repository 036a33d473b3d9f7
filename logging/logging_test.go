package logging_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/logging"
)

var _ = Describe("Logger", func() {
	It("attaches fields without mutating the parent logger", func() {
		base := logging.NewNop()
		child := base.WithFields(logging.Fields{"conn_id": uint64(42)})

		Expect(child).ToNot(BeNil())
		Expect(func() { child.Infof("client connected") }).ToNot(Panic())
		Expect(func() { base.Infof("unrelated") }).ToNot(Panic())
	})

	It("never panics regardless of level", func() {
		l := logging.NewNop()
		for _, lvl := range []logging.Level{logging.DebugLevel, logging.InfoLevel, logging.WarnLevel, logging.ErrorLevel} {
			l.SetLevel(lvl)
			l.Debugf("d")
			l.Infof("i")
			l.Warnf("w")
			l.Errorf("e")
		}
	})
})
