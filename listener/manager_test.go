package listener_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/listener"
)

var _ = Describe("Manager", func() {
	It("opens listeners from configuration and exposes them", func() {
		m := listener.NewManager(nil)
		errs := m.Open([]listener.Config{
			{Name: "plain", BindAddress: "127.0.0.1", Port: 0},
		})
		Expect(errs).To(BeEmpty())
		Expect(m.Listeners()).To(HaveLen(1))

		sc := m.Listeners()[0]
		Expect(sc.TLSConfig()).To(BeNil())
		Expect(sc.RefCount()).To(Equal(int64(0)))

		m.CloseAll()
		Expect(m.Listeners()).To(BeEmpty())
	})

	It("skips a listener that fails to open without aborting the rest", func() {
		m := listener.NewManager(nil)
		errs := m.Open([]listener.Config{
			{Name: "bad", BindAddress: "256.256.256.256", Port: 1},
			{Name: "good", BindAddress: "127.0.0.1", Port: 0},
		})
		Expect(errs).To(HaveLen(1))
		Expect(m.Listeners()).To(HaveLen(1))
		m.CloseAll()
	})

	It("tracks refcount and drains before closing", func() {
		m := listener.NewManager(nil)
		Expect(m.Open([]listener.Config{{Name: "a", BindAddress: "127.0.0.1", Port: 0}})).To(BeEmpty())

		sc := m.Listeners()[0]
		sc.Acquire()
		Expect(sc.RefCount()).To(Equal(int64(1)))
		sc.Release()
		Expect(sc.RefCount()).To(Equal(int64(0)))

		m.CloseAll()
	})

	It("retains a privileged listener whose bind address is unchanged across reload", func() {
		m := listener.NewManager(nil)
		initial := []listener.Config{{Name: "priv", BindAddress: "127.0.0.1", Port: 1023}}
		if errs := m.Open(initial); len(errs) != 0 {
			Skip("cannot bind privileged test port in this environment")
		}

		before := m.Listeners()[0]

		errs := m.ReloadRetainPrivileged([]listener.Config{
			{Name: "priv", BindAddress: "127.0.0.1", Port: 1023},
			{Name: "extra", BindAddress: "127.0.0.1", Port: 0},
		})
		Expect(errs).To(BeEmpty())

		after := m.Listeners()
		Expect(after).To(HaveLen(2))

		var retained *listener.ServerConn
		for _, sc := range after {
			if sc.Config().Name == "priv" {
				retained = sc
			}
		}
		Expect(retained).ToNot(BeNil())
		Expect(retained.Listener()).To(BeIdenticalTo(before.Listener()))

		m.CloseAll()
	})

	It("closes a non-retained listener during reload", func() {
		m := listener.NewManager(nil)
		Expect(m.Open([]listener.Config{{Name: "ephemeral", BindAddress: "127.0.0.1", Port: 0}})).To(BeEmpty())

		errs := m.ReloadRetainPrivileged([]listener.Config{
			{Name: "new", BindAddress: "127.0.0.1", Port: 0},
		})
		Expect(errs).To(BeEmpty())
		Expect(m.Listeners()).To(HaveLen(1))
		Expect(m.Listeners()[0].Config().Name).To(Equal("new"))

		m.CloseAll()
	})
})
