/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package reqstate models one accepted client end to end: its Connection,
// its read buffer, the reference-counted response buffer, and the request
// assembly state machine that drives it from first bytes to a terminal
// handler (spec.md §3, §4.6). The state machine is modeled as the design
// note prescribes: a tagged variant over a small, fixed state set with a
// single transition function, rather than the C source's (process,
// destroy) function-pointer pair.
package reqstate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"streamfront/connio"
)

// State is the client's current position in the handoff pipeline.
type State uint8

const (
	// ShoutcastIntro is the entry state for a listener marked
	// shoutcast-compatible: reads the legacy password line before ever
	// entering RequestRead (spec.md §4.7).
	ShoutcastIntro State = iota
	// RequestRead drives the shared buffer to a recognized header
	// terminator or the Flash policy short-circuit (spec.md §4.6).
	RequestRead
	// AwaitingContinue is the brief sub-state between writing the 100
	// Continue response and re-entering source setup (spec.md §4.6).
	AwaitingContinue
	// GetHandler, SourceHandler, StatsHandler are terminal: ownership of
	// further I/O passes to the dispatch layer's collaborators.
	GetHandler
	SourceHandler
	StatsHandler
	// FlashPolicy is terminal: the Flash cross-domain policy short-circuit
	// routes straight to a file-serve of /flashpolicy (spec.md §4.6),
	// bypassing header parsing entirely.
	FlashPolicy
	// ResponseOnly is terminal for requests answered directly by the state
	// machine itself (OPTIONS, and any verb outside the recognized set)
	// rather than handed to a dispatch-layer collaborator.
	ResponseOnly
	// Closed marks a client the state machine has decided to drop; the
	// worker observes this and tears the connection down.
	Closed
)

func (s State) String() string {
	switch s {
	case ShoutcastIntro:
		return "shoutcast-intro"
	case RequestRead:
		return "request-read"
	case AwaitingContinue:
		return "awaiting-continue"
	case GetHandler:
		return "get-handler"
	case SourceHandler:
		return "source-handler"
	case StatsHandler:
		return "stats-handler"
	case FlashPolicy:
		return "flash-policy"
	case ResponseOnly:
		return "response-only"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Flags is the bitset of per-client flags spec.md §3 names.
type Flags uint8

const (
	FlagKeepAlive Flags = 1 << iota
	FlagActive
	FlagWantsFLV
	FlagSkipAccessLog
)

func (f *Flags) set(bit Flags)   { *f |= bit }
func (f *Flags) clear(bit Flags) { *f &^= bit }

// Has reports whether bit is set.
func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// ListenerAttrs is the subset of a listener's configuration the state
// machine and shoutcast translator need once a client has been accepted;
// a deliberately decoupled copy of listener.Config's TLS/shoutcast fields
// so this package has no dependency on the listener package.
type ListenerAttrs struct {
	Name            string
	TLSEnabled      bool
	ShoutcastCompat bool
	ShoutcastMount  string
}

// Classified describes what the parsed request turned out to be, handed to
// the dispatch layer once the state machine reaches a terminal state.
type Classified struct {
	Method    string // GET, HEAD, SOURCE, PUT, STATS, OPTIONS, or the raw verb for "other"
	URI       string
	Parsed    ParsedRequest
	BodyStart *Refbuf // early body bytes that arrived with the header block, if any
}

// Client is one accepted connection plus the state it is in. Exactly one
// worker goroutine ever drives a given Client's Step at a time (spec.md §5:
// "a single client is never entered re-entrantly"); the mutex here guards
// fields a concurrently-running admin/stats action might also touch (Count,
// Flags) rather than the step path itself.
type Client struct {
	mu sync.Mutex

	Conn *connio.Connection

	// TraceID is an opaque per-client UUID attached to log fields for
	// correlation across a request's lifetime. It is distinct from the
	// Connection's monotonic ID (spec.md §3 requires that stay a small
	// strictly-increasing integer); this one exists purely for log
	// correlation and carries no ordering guarantee.
	TraceID uuid.UUID

	// ReleaseListener, when non-nil, decrements the owning listener's
	// connection refcount. The accept loop sets it right after Acquire;
	// whichever collaborator tears the client down must call it exactly
	// once so listener drain can complete.
	ReleaseListener func()

	State   State
	Attrs   ListenerAttrs
	flags   Flags
	code    int
	count   uint64
	sched   time.Time
	deadline time.Time
	connTime time.Time

	// shared is the in-progress request-read buffer used while State is
	// ShoutcastIntro/RequestRead. It is allocated at NewClient and replaced
	// by ResetShared; it is not released when the client reaches a terminal
	// state.
	shared []byte
	sharedLen int

	// active is the response/body buffer once the client has left request
	// assembly. The state machine sets it only on entering SourceHandler, to
	// the body bytes that arrived with the header block (nil when none did);
	// other terminal states leave it nil unless SetActive is called.
	active *Refbuf

	classified Classified

	parserErr error
}

// sharedBufCap is the size of the per-client header read buffer. The C
// source sizes this per listener; a fixed cap keeps this port simple and
// is generous for any real HTTP/ICY/Shoutcast header block.
const sharedBufCap = 8192

// NewClient wraps conn as a fresh Client entering state based on whether
// its listener is shoutcast-compatible, with its disconnect deadline set
// to now + headerTimeout (spec.md §4.5).
func NewClient(conn *connio.Connection, attrs ListenerAttrs, now time.Time, headerTimeout time.Duration) *Client {
	c := &Client{
		Conn:     conn,
		TraceID:  uuid.New(),
		Attrs:    attrs,
		shared:   make([]byte, sharedBufCap),
		sched:    now,
		connTime: now,
		deadline: now.Add(headerTimeout),
	}
	if attrs.ShoutcastCompat {
		c.State = ShoutcastIntro
	} else {
		c.State = RequestRead
	}
	c.flags.set(FlagActive)
	return c
}

// Flags returns the client's current flag bitset.
func (c *Client) Flags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

func (c *Client) setFlag(b Flags)   { c.mu.Lock(); c.flags.set(b); c.mu.Unlock() }
func (c *Client) clearFlag(b Flags) { c.mu.Lock(); c.flags.clear(b); c.mu.Unlock() }

// ResponseCode returns the HTTP-ish status code the dispatch layer decided
// on (0 if none yet).
func (c *Client) ResponseCode() int { return c.code }

// SetResponseCode records the status code a terminal dispatcher chose.
func (c *Client) SetResponseCode(code int) { c.code = code }

// Count returns the client's request counter (bumped once per accepted
// request; used by access-log/stats collaborators, not by this package).
func (c *Client) Count() uint64 { return c.count }

// IncCount bumps the request counter.
func (c *Client) IncCount() { c.mu.Lock(); c.count++; c.mu.Unlock() }

// Deadline returns the client's disconnect deadline.
func (c *Client) Deadline() time.Time { return c.deadline }

// ScheduleAt returns the timestamp at which the worker should next invoke
// Step (spec.md §5 "returns a next-wake timestamp").
func (c *Client) ScheduleAt() time.Time { return c.sched }

// Active returns the client's active response/body refbuf; see the active
// field for when it is non-nil.
func (c *Client) Active() *Refbuf { return c.active }

// Classified returns the result of request classification, valid once
// State is GetHandler, SourceHandler, or StatsHandler.
func (c *Client) Classified() Classified { return c.classified }
