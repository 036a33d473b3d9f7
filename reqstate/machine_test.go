package reqstate_test

import (
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/connio"
	"streamfront/reqstate"
)

// fakeParsed is a minimal ParsedRequest built from a raw header block for
// test purposes: "METHOD URI PROTOCOL/VERSION\r\nHeader: value\r\n...".
type fakeParsed struct {
	method, uri, protocol, version string
	headers                        map[string]string
}

func (f *fakeParsed) Method() string   { return f.method }
func (f *fakeParsed) Protocol() string { return f.protocol }
func (f *fakeParsed) Version() string  { return f.version }
func (f *fakeParsed) URI() string      { return f.uri }
func (f *fakeParsed) Header(name string) (string, bool) {
	v, ok := f.headers[strings.ToLower(name)]
	return v, ok
}
func (f *fakeParsed) Query(string) (string, bool) { return "", false }

type fakeParser struct{ failOn string }

func (p *fakeParser) Parse(raw []byte) (reqstate.ParsedRequest, error) {
	text := string(raw)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	first := strings.Fields(lines[0])
	if len(first) < 2 {
		return nil, errParse
	}
	fp := &fakeParsed{method: first[0], uri: first[1], headers: map[string]string{}}
	if len(first) >= 3 {
		parts := strings.SplitN(first[2], "/", 2)
		fp.protocol = parts[0]
		if len(parts) == 2 {
			fp.version = parts[1]
		}
	} else {
		fp.protocol = "HTTP"
		fp.version = "1.0"
	}
	for _, l := range lines[1:] {
		if l == "" {
			continue
		}
		kv := strings.SplitN(l, ":", 2)
		if len(kv) != 2 {
			continue
		}
		fp.headers[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	if p.failOn != "" && fp.method == p.failOn {
		return nil, errParse
	}
	return fp, nil
}

type errT struct{}

func (errT) Error() string { return "parse failure" }

var errParse = errT{}

type denyFilter struct{ denied string }

func (d denyFilter) IsAgentDenied(ua string) bool { return ua == d.denied }

func newTestClient(attrs reqstate.ListenerAttrs) (*reqstate.Client, net.Conn) {
	server, client := net.Pipe()
	conn := connio.New(server, attrs.Name)
	c := reqstate.NewClient(conn, attrs, time.Now(), 5*time.Second)
	return c, client
}

var _ = Describe("Machine", func() {
	var m *reqstate.Machine

	BeforeEach(func() {
		m = reqstate.NewMachine(&fakeParser{}, nil)
	})

	It("classifies a GET request using the \\r\\n\\r\\n terminator", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("GET /stream.ogg HTTP/1.1\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.GetHandler))
		Expect(c.Classified().URI).To(Equal("/stream.ogg"))
		Expect(c.Flags().Has(reqstate.FlagKeepAlive)).To(BeTrue())
	})

	It("classifies identically with an LF-only terminator (S2)", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("GET /stream.ogg HTTP/1.0\n\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.GetHandler))
		Expect(c.Classified().URI).To(Equal("/stream.ogg"))
		Expect(c.Flags().Has(reqstate.FlagKeepAlive)).To(BeFalse())
	})

	It("classifies identically with the \\r\\r\\n\\r\\r\\n terminator", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("GET /stream.ogg HTTP/1.0\r\r\n\r\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.GetHandler))
	})

	It("short-circuits a Flash policy probe before any parsing", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("<policy-file-request/>\x00"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.FlashPolicy))
		Expect(c.Classified().URI).To(Equal("/flashpolicy"))
	})

	It("preserves body bytes that arrive with the header block (property 3)", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("SOURCE /live HTTP/1.0\r\n\r\nHELLOBYTES"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.SourceHandler))
		Expect(c.Active().Bytes()).To(Equal([]byte("HELLOBYTES")))
	})

	It("answers Expect: 100-continue before reaching the source handler (S6)", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("PUT /live HTTP/1.1\r\nExpect: 100-continue\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Response != nil
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.AwaitingContinue))
		Expect(out.Response.Total()).To(BeNumerically(">", 0))

		final := m.Step(c, time.Now())
		Expect(final.Terminal).To(BeTrue())
		Expect(c.State).To(Equal(reqstate.SourceHandler))
	})

	It("sends a canned response for OPTIONS", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("OPTIONS * HTTP/1.1\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.State).To(Equal(reqstate.ResponseOnly))
		Expect(c.ResponseCode()).To(Equal(200))
		Expect(out.Response).ToNot(BeNil())
	})

	It("sends 501 for an unrecognized verb", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("TRACE / HTTP/1.1\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(c.ResponseCode()).To(Equal(501))
	})

	It("drops a client whose protocol token is neither HTTP nor ICE", func() {
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("GET / GOPHER/1.0\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = m.Step(c, time.Now())
			return out.Drop || out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(out.Drop).To(BeTrue())
	})

	It("drops a client whose User-Agent is denied", func() {
		mm := reqstate.NewMachine(&fakeParser{}, denyFilter{denied: "BadBot/1.0"})
		c, peer := newTestClient(reqstate.ListenerAttrs{Name: "plain"})
		go func() {
			_, _ = peer.Write([]byte("GET / HTTP/1.0\r\nUser-Agent: BadBot/1.0\r\n\r\n"))
		}()

		var out reqstate.Outcome
		Eventually(func() bool {
			out = mm.Step(c, time.Now())
			return out.Drop || out.Terminal
		}, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(out.Drop).To(BeTrue())
	})

	It("drops a client once its disconnect deadline passes with no terminator", func() {
		server, _ := net.Pipe()
		conn := connio.New(server, "plain")
		past := time.Now().Add(-time.Second)
		c := reqstate.NewClient(conn, reqstate.ListenerAttrs{Name: "plain"}, past, time.Millisecond)

		out := m.Step(c, time.Now())
		Expect(out.Drop).To(BeTrue())
	})
})
