package control_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/control"
)

var _ = Describe("Manual channel", func() {
	It("delivers emitted events in order", func() {
		ch, emit := control.NewManual()
		defer ch.Close()

		emit(control.Reload)
		emit(control.Terminate)

		Expect(<-ch.Events()).To(Equal(control.Reload))
		Expect(<-ch.Events()).To(Equal(control.Terminate))
	})

	It("drops events once the buffer is full instead of blocking the emitter", func() {
		ch, emit := control.NewManual()
		defer ch.Close()

		for i := 0; i < 100; i++ {
			emit(control.Reload)
		}
	})

	It("stringifies known and unknown events", func() {
		Expect(control.Terminate.String()).To(Equal("terminate"))
		Expect(control.Reload.String()).To(Equal("reload"))
		Expect(control.Event(99).String()).To(Equal("unknown"))
	})
})
