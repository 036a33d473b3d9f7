package filterstore_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"streamfront/filterstore"
)

func writeFile(dir, name, contents string) string {
	p := filepath.Join(dir, name)
	Expect(os.WriteFile(p, []byte(contents), 0o644)).To(Succeed())
	return p
}

var _ = Describe("Store", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "filterstore-test-*")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("allows everyone when the allow list is empty", func() {
		s := filterstore.New(filterstore.Config{}, nil)
		Expect(s.IsAllowed("203.0.113.5")).To(BeTrue())
	})

	It("restricts to listed entries once the allow list is non-empty", func() {
		p := writeFile(dir, "allow.txt", "203.0.113.5\n10.0.0.*\n")
		s := filterstore.New(filterstore.Config{AllowFile: p}, nil)

		Expect(s.IsAllowed("203.0.113.5")).To(BeTrue())
		Expect(s.IsAllowed("10.0.0.42")).To(BeTrue())
		Expect(s.IsAllowed("198.51.100.1")).To(BeFalse())
	})

	It("matches literal and glob ban entries", func() {
		p := writeFile(dir, "ban.txt", "198.51.100.1\n192.0.2.*\n")
		s := filterstore.New(filterstore.Config{BanFile: p}, nil)

		Expect(s.IsBanned("198.51.100.1")).To(BeTrue())
		Expect(s.IsBanned("192.0.2.77")).To(BeTrue())
		Expect(s.IsBanned("203.0.113.9")).To(BeFalse())
	})

	It("denies user agents on the agent-deny list", func() {
		p := writeFile(dir, "agents.txt", "BadBot/*\n")
		s := filterstore.New(filterstore.Config{AgentFile: p}, nil)

		Expect(s.IsAgentDenied("BadBot/1.0")).To(BeTrue())
		Expect(s.IsAgentDenied("GoodBot/1.0")).To(BeFalse())
	})

	It("reloads the ban file when its mtime advances", func() {
		p := writeFile(dir, "ban.txt", "198.51.100.1\n")
		s := filterstore.New(filterstore.Config{BanFile: p}, nil)
		Expect(s.IsBanned("203.0.113.9")).To(BeFalse())

		time.Sleep(10 * time.Millisecond)
		Expect(os.WriteFile(p, []byte("203.0.113.9\n"), 0o644)).To(Succeed())

		Expect(s.IsBanned("203.0.113.9")).To(BeTrue())
	})

	It("stops matching a runtime ban added via Ban once its ttl has passed", func() {
		s := filterstore.New(filterstore.Config{}, nil)
		s.Ban("203.0.113.9", time.Millisecond)

		time.Sleep(5 * time.Millisecond)
		Expect(s.IsBanned("203.0.113.9")).To(BeFalse())
	})

	It("bans permanently when ttl is zero", func() {
		s := filterstore.New(filterstore.Config{}, nil)
		s.Ban("203.0.113.9", 0)
		Expect(s.IsBanned("203.0.113.9")).To(BeTrue())
	})
})
