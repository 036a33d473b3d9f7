package connio_test

import (
	"io"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/connio"
)

var _ = Describe("Connection", func() {
	It("assigns strictly increasing ids across instances", func() {
		a, b := net.Pipe()
		defer a.Close()
		defer b.Close()

		c1 := connio.New(a, "listener-a")
		c2 := connio.New(a, "listener-a")

		Expect(c2.ID()).To(BeNumerically(">", c1.ID()))
	})

	It("sends a full vector in one call", func() {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		conn := connio.New(server, "listener-a")

		v := connio.NewBufs()
		v.Append([]byte("hello "))
		v.Append([]byte("world"))

		readAll := make(chan []byte, 1)
		go func() {
			buf := make([]byte, 64)
			total := 0
			for total < 11 {
				n, err := client.Read(buf[total:])
				if err != nil && err != io.EOF {
					break
				}
				total += n
				if n == 0 {
					break
				}
			}
			readAll <- buf[:total]
		}()

		n, err := conn.Send(v, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(11))
		Expect(<-readAll).To(Equal([]byte("hello world")))

		// Total is unchanged by the send.
		Expect(v.Total()).To(Equal(11))
	})

	It("resumes mid-entry with a skip and leaves the vector intact (property 6)", func() {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		conn := connio.New(server, "listener-a")

		v := connio.NewBufs()
		v.Append([]byte("hello "))
		v.Append([]byte("world"))

		readN := func(want int) <-chan []byte {
			out := make(chan []byte, 1)
			go func() {
				buf := make([]byte, 64)
				total := 0
				for total < want {
					n, err := client.Read(buf[total:])
					total += n
					if err != nil {
						break
					}
				}
				out <- buf[:total]
			}()
			return out
		}

		// Skip lands inside the first entry: bytes 3.. of "hello world".
		got := readN(8)
		n, err := conn.Send(v, 3)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(8))
		Expect(<-got).To(Equal([]byte("lo world")))

		// The in-place mutation was reverted: a fresh full send emits the
		// original byte sequence.
		got = readN(11)
		n, err = conn.Send(v, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(11))
		Expect(<-got).To(Equal([]byte("hello world")))
		Expect(v.Total()).To(Equal(11))
	})

	It("panics when skip exceeds the vector total", func() {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		conn := connio.New(server, "listener-a")
		v := connio.NewBufs()
		v.Append([]byte("hi"))

		Expect(func() { _, _ = conn.Send(v, 99) }).To(Panic())
	})
})
