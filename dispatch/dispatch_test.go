package dispatch_test

import (
	"encoding/base64"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/connio"
	"streamfront/coreconfig"
	"streamfront/dispatch"
	"streamfront/reqstate"
)

type fakeParsed struct {
	method, uri, protocol, version string
	headers                        map[string]string
	query                          map[string]string
}

func (f *fakeParsed) Method() string   { return f.method }
func (f *fakeParsed) Protocol() string { return f.protocol }
func (f *fakeParsed) Version() string  { return f.version }
func (f *fakeParsed) URI() string      { return f.uri }
func (f *fakeParsed) Header(name string) (string, bool) {
	v, ok := f.headers[strings.ToLower(name)]
	return v, ok
}
func (f *fakeParsed) Query(name string) (string, bool) {
	v, ok := f.query[name]
	return v, ok
}

type fakeGet struct {
	called         bool
	uri, peerIP    string
}

func (f *fakeGet) ServeGet(c *reqstate.Client, uri, peerIP string) {
	f.called, f.uri, f.peerIP = true, uri, peerIP
}

type fakeAdmin struct {
	called      bool
	uri, peerIP string
}

func (f *fakeAdmin) ServeAdmin(c *reqstate.Client, uri, peerIP string) {
	f.called, f.uri, f.peerIP = true, uri, peerIP
}

type fakeSource struct {
	called      bool
	uri, peerIP string
}

func (f *fakeSource) ServeSource(c *reqstate.Client, uri, peerIP string) {
	f.called, f.uri, f.peerIP = true, uri, peerIP
}

type fakeStats struct {
	called bool
	uri    string
	slave  bool
}

func (f *fakeStats) ServeStats(c *reqstate.Client, uri string, slave bool) {
	f.called, f.uri, f.slave = true, uri, slave
}

type fakeFileServe struct {
	called bool
	uri    string
}

func (f *fakeFileServe) ServeFile(c *reqstate.Client, uri string) {
	f.called, f.uri = true, uri
}

type fakeCounter struct{ n int }

func (f fakeCounter) ClientCount() int { return f.n }

type fakeAuth struct{ result dispatch.AuthResult }

func (f fakeAuth) Authenticate(reqstate.ParsedRequest) dispatch.AuthResult { return f.result }

func newTestClient() *reqstate.Client {
	server, _ := net.Pipe()
	conn := connio.New(server, "plain")
	return reqstate.NewClient(conn, reqstate.ListenerAttrs{Name: "plain"}, time.Now(), 5*time.Second)
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

var _ = Describe("Auth helpers", func() {
	It("verifies a well-formed HTTP Basic header", func() {
		h := basicAuthHeader("source", "secret")
		Expect(dispatch.VerifyHTTPBasic(h, "source", "secret")).To(BeTrue())
		Expect(dispatch.VerifyHTTPBasic(h, "source", "wrong")).To(BeFalse())
	})

	It("fails closed when the decoded value has no colon", func() {
		h := "Basic " + base64.StdEncoding.EncodeToString([]byte("nodata"))
		Expect(dispatch.VerifyHTTPBasic(h, "source", "secret")).To(BeFalse())
	})

	It("compares ICY passwords directly", func() {
		Expect(dispatch.VerifyICY("secret", "secret")).To(BeTrue())
		Expect(dispatch.VerifyICY("", "secret")).To(BeFalse())
	})

	It("accepts the legacy ice-password header", func() {
		Expect(dispatch.VerifyIcePassword("secret", "secret", nil)).To(BeTrue())
		Expect(dispatch.VerifyIcePassword("wrong", "secret", nil)).To(BeFalse())
	})
})

var _ = Describe("Dispatcher.DispatchGet", func() {
	var (
		cfg     *coreconfig.Config
		store   *coreconfig.Store
		get     *fakeGet
		admin   *fakeAdmin
		counter fakeCounter
		d       *dispatch.Dispatcher
	)

	BeforeEach(func() {
		cfg = &coreconfig.Config{ClientLimit: 10}
		store = coreconfig.NewStore(cfg)
		get = &fakeGet{}
		admin = &fakeAdmin{}
		counter = fakeCounter{n: 0}
		d = &dispatch.Dispatcher{Config: store, Get: get, Admin: admin, Counter: counter}
	})

	It("routes a plain GET to the listener-attach handler", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/stream.ogg", headers: map[string]string{}, query: map[string]string{}}

		result := d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(result.Handled).To(BeTrue())
		Expect(get.called).To(BeTrue())
		Expect(get.uri).To(Equal("/stream.ogg"))
		Expect(get.peerIP).To(Equal("9.9.9.9"))
	})

	It("sets WANTS_FLV for a .flv extension", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/stream.flv", headers: map[string]string{}, query: map[string]string{}}

		d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(c.Flags().Has(reqstate.FlagWantsFLV)).To(BeTrue())
	})

	It("sets WANTS_FLV for a type=.flv query hint", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/stream", headers: map[string]string{}, query: map[string]string{"type": ".flv"}}

		d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(c.Flags().Has(reqstate.FlagWantsFLV)).To(BeTrue())
	})

	It("sets SKIP_ACCESSLOG when the extension matches the exclude list", func() {
		cfg.AccessLogExcludeExt = []string{"ico", "css"}
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/favicon.ico", headers: map[string]string{}, query: map[string]string{}}

		d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(c.Flags().Has(reqstate.FlagSkipAccessLog)).To(BeTrue())
	})

	It("substitutes X-Forwarded-For only when the peer is a trusted forwarder", func() {
		cfg.XForward = []string{"10.0.0.1"}
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/stream.ogg", headers: map[string]string{"x-forwarded-for": "203.0.113.5, 10.0.0.1"}, query: map[string]string{}}

		d.DispatchGet(c, parsed, "10.0.0.1", 8000, "0.0.0.0")
		Expect(get.peerIP).To(Equal("203.0.113.5"))

		get.called = false
		d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")
		Expect(get.peerIP).To(Equal("9.9.9.9"))
	})

	It("rewrites the URI through the first matching alias", func() {
		cfg.Aliases = []coreconfig.AliasConfig{
			{SourceURI: "/old.ogg", DestURI: "/new.ogg"},
		}
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/old.ogg", headers: map[string]string{}, query: map[string]string{}}

		d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(get.uri).To(Equal("/new.ogg"))
	})

	It("refuses a non-admin GET with 403 once the client limit is exceeded", func() {
		d.Counter = fakeCounter{n: 11}
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/stream.ogg", headers: map[string]string{}, query: map[string]string{}}

		result := d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(result.Response).ToNot(BeNil())
		Expect(c.ResponseCode()).To(Equal(403))
		Expect(get.called).To(BeFalse())
	})

	It("never rejects /admin/stats by the client limit (property 8)", func() {
		d.Counter = fakeCounter{n: 11}
		c := newTestClient()
		parsed := &fakeParsed{method: "GET", uri: "/admin/stats", headers: map[string]string{}, query: map[string]string{}}

		result := d.DispatchGet(c, parsed, "9.9.9.9", 8000, "0.0.0.0")

		Expect(result.Handled).To(BeTrue())
		Expect(admin.called).To(BeTrue())
	})
})

var _ = Describe("Dispatcher.DispatchSource", func() {
	var (
		store  *coreconfig.Store
		source *fakeSource
		d      *dispatch.Dispatcher
	)

	BeforeEach(func() {
		store = coreconfig.NewStore(&coreconfig.Config{})
		source = &fakeSource{}
		d = &dispatch.Dispatcher{Config: store, Source: source}
	})

	It("rejects a URI that does not start with /", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "SOURCE", uri: "live", headers: map[string]string{}}

		result := d.DispatchSource(c, parsed, "9.9.9.9")

		Expect(result.Response).ToNot(BeNil())
		Expect(c.ResponseCode()).To(Equal(401))
		Expect(source.called).To(BeFalse())
	})

	It("attaches the source handler when auth is granted", func() {
		d.Auth = fakeAuth{result: dispatch.AuthGranted}
		c := newTestClient()
		parsed := &fakeParsed{method: "SOURCE", uri: "/live", headers: map[string]string{}}

		result := d.DispatchSource(c, parsed, "9.9.9.9")

		Expect(result.Handled).To(BeTrue())
		Expect(source.called).To(BeTrue())
		Expect(source.uri).To(Equal("/live"))
	})

	It("leaves the client alone on AuthPending", func() {
		d.Auth = fakeAuth{result: dispatch.AuthPending}
		c := newTestClient()
		parsed := &fakeParsed{method: "SOURCE", uri: "/live", headers: map[string]string{}}

		result := d.DispatchSource(c, parsed, "9.9.9.9")

		Expect(result.Handled).To(BeTrue())
		Expect(result.Response).To(BeNil())
		Expect(source.called).To(BeFalse())
	})

	It("replies 401 when auth is denied", func() {
		d.Auth = fakeAuth{result: dispatch.AuthDenied}
		c := newTestClient()
		parsed := &fakeParsed{method: "SOURCE", uri: "/live", headers: map[string]string{}}

		result := d.DispatchSource(c, parsed, "9.9.9.9")

		Expect(result.Response).ToNot(BeNil())
		Expect(c.ResponseCode()).To(Equal(401))
	})
})

var _ = Describe("Dispatcher.DispatchStats", func() {
	var (
		cfg   *coreconfig.Config
		store *coreconfig.Store
		stats *fakeStats
		get   *fakeGet
		d     *dispatch.Dispatcher
	)

	BeforeEach(func() {
		cfg = &coreconfig.Config{AdminUser: "admin", AdminPassword: "adminpw", RelayUser: "relay", RelayPassword: "relaypw"}
		store = coreconfig.NewStore(cfg)
		stats = &fakeStats{}
		get = &fakeGet{}
		d = &dispatch.Dispatcher{Config: store, Stats: stats, Get: get}
	})

	It("attaches a full stats listener for the admin credential", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "STATS", uri: "/admin/stats", headers: map[string]string{"authorization": basicAuthHeader("admin", "adminpw")}}

		d.DispatchStats(c, parsed, "9.9.9.9")

		Expect(stats.called).To(BeTrue())
		Expect(stats.slave).To(BeFalse())
	})

	It("attaches a slave stats listener for the relay credential on /admin/streams", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "STATS", uri: "/admin/streams", headers: map[string]string{"authorization": basicAuthHeader("relay", "relaypw")}}

		d.DispatchStats(c, parsed, "9.9.9.9")

		Expect(stats.called).To(BeTrue())
		Expect(stats.slave).To(BeTrue())
	})

	It("falls through to a normal listener attach without a matching credential", func() {
		c := newTestClient()
		parsed := &fakeParsed{method: "STATS", uri: "/stats.xsl", headers: map[string]string{}}

		d.DispatchStats(c, parsed, "9.9.9.9")

		Expect(stats.called).To(BeFalse())
		Expect(get.called).To(BeTrue())
	})
})

var _ = Describe("Dispatcher.DispatchFlashPolicy", func() {
	It("routes the probe to the fileserve collaborator as /flashpolicy", func() {
		fs := &fakeFileServe{}
		d := &dispatch.Dispatcher{Config: coreconfig.NewStore(&coreconfig.Config{}), FileServe: fs}
		c := newTestClient()

		result := d.DispatchFlashPolicy(c)

		Expect(result.Handled).To(BeTrue())
		Expect(fs.called).To(BeTrue())
		Expect(fs.uri).To(Equal("/flashpolicy"))
	})
})

var _ = Describe("NormalizeURI", func() {
	It("guarantees a leading slash", func() {
		Expect(dispatch.NormalizeURI("stream.ogg")).To(Equal("/stream.ogg"))
	})

	It("defaults an empty URI to /", func() {
		Expect(dispatch.NormalizeURI("")).To(Equal("/"))
	})

	It("collapses repeated slashes", func() {
		Expect(dispatch.NormalizeURI("//a//b")).To(Equal("/a/b"))
	})
})
