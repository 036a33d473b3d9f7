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

// Command coreserver is a runnable example wiring of the connection
// front-end: it assembles every package under this module into one running
// accept loop, using the simplest possible stand-ins for the collaborators
// spec.md §1 declares out of scope (the worker pool, the HTTP header
// parser, and the auth/admin/fileserve/source/stats terminal handlers).
// None of those stand-ins belong to the connection front-end itself; a
// real deployment replaces every one of them and keeps everything else in
// this module unchanged.
package main

import (
	"flag"
	"os"
	"time"

	"streamfront/acceptloop"
	"streamfront/control"
	"streamfront/coreconfig"
	"streamfront/dispatch"
	"streamfront/filterstore"
	"streamfront/listener"
	"streamfront/logging"
)

func main() {
	var (
		port     = flag.Int("port", 8000, "plain HTTP/ICE listener port")
		scPort   = flag.Int("shoutcast-port", 0, "shoutcast-compatible listener port (0 disables it)")
		mount    = flag.String("shoutcast-mount", "/live", "mount name synthesized for shoutcast ingests")
		timeout  = flag.Duration("header-timeout", 15*time.Second, "per-client header-read deadline")
		limit    = flag.Int("client-limit", 0, "global non-admin GET client cap (0 disables it)")
		srcPass  = flag.String("source-password", "", "SOURCE/PUT basic-auth password")
		verbose  = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	log := logging.NewNop()
	if *verbose {
		log = logging.New()
		log.SetLevel(logging.DebugLevel)
	}

	cfg := &coreconfig.Config{
		Listeners:      []listener.Config{{Name: "plain", BindAddress: "0.0.0.0", Port: *port, Backlog: 128}},
		HeaderTimeout:  *timeout,
		ClientLimit:    *limit,
		SourcePassword: *srcPass,
	}
	if *scPort > 0 {
		cfg.Listeners = append(cfg.Listeners, listener.Config{
			Name: "shoutcast", BindAddress: "0.0.0.0", Port: *scPort, Backlog: 128,
			ShoutcastCompat: true, ShoutcastMount: *mount,
		})
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	store := coreconfig.NewStore(cfg)

	filters := filterstore.New(cfg.Filters, log)
	defer filters.Close()
	if err := filters.WatchFS(); err != nil {
		log.Warnf("filter store: eager fsnotify watch unavailable, falling back to mtime polling: %v", err)
	}

	mgr := listener.NewManager(log)
	if errs := mgr.Open(cfg.Listeners); len(errs) != 0 {
		for _, e := range errs {
			log.Errorf("listener: %v", e)
		}
	}
	if len(mgr.Listeners()) == 0 {
		log.Errorf("no listener could be opened, exiting")
		os.Exit(1)
	}

	handlers := logHandlers{log: log}
	dispatcher := dispatch.NewDispatcher(store)
	dispatcher.Get = handlers
	dispatcher.Admin = handlers
	dispatcher.Source = handlers
	dispatcher.Stats = handlers
	dispatcher.FileServe = handlers
	dispatcher.Auth = dispatch.DefaultAuthenticator{SourcePassword: *srcPass, IceLogin: cfg.IceLogin, Log: log}

	ctl := control.New()
	defer ctl.Close()

	worker := newStubWorker(dispatcher, log)
	dispatcher.Counter = worker

	loop := &acceptloop.Loop{
		Manager: mgr,
		Filters: filters,
		Config:  store,
		Control: ctl,
		Worker:  worker,
		Log:     log,
		Reload: func() {
			// Configuration-snapshot population is out of scope for this
			// module (coreconfig's own doc comment); a real deployment
			// wires its config loader here and calls store.Replace. The
			// filter store's own file reload is independent of this and
			// already mtime-driven on every lookup (spec.md §4.3).
			log.Infof("reload requested: re-read your configuration source and call store.Replace here")
		},
	}

	log.Infof("coreserver listening on %d listeners", len(mgr.Listeners()))
	loop.Run()
	mgr.CloseAll()
}
