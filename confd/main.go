/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Command confd assembles a cfgcore.Core and serves its metrics.  The RPC
// transport that would front it with real clients is out of scope (see
// DESIGN.md); this binary is the embeddable core plus the daemon
// scaffolding around it: flags, logging, metrics, and the timeout
// watchdog's drive loop.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bg/ap_common/aputil"
	"bg/common/cfgcore"
	"bg/common/cfgsched"
)

const pname = "confd"

var (
	addr = flag.String("listen-address", ":6060",
		"address to listen on for the prometheus /metrics endpoint")
	propdir = flag.String("propdir", "./proptree",
		"directory in which tree revision files are stored")
	logLevel = flag.String("log-level", "info",
		"initial log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	log := aputil.NewLogger(pname)
	defer log.Sync() // nolint:errcheck

	if err := aputil.LogSetLevel(pname, *logLevel); err != nil {
		log.Warnw("ignoring unparseable log level", "level", *logLevel, "error", err)
	}

	dir := aputil.ExpandDirPath(*propdir)
	if !aputil.FileExists(dir) {
		log.Fatalw("property directory does not exist", "dir", dir)
	}

	reg := prometheus.NewRegistry()
	met := cfgsched.NewMetrics(reg)
	core := cfgcore.New(dir, log, met)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*addr, nil); err != nil {
			log.Errorw("metrics server exited", "error", err)
		}
	}()
	log.Infow("serving metrics", "address", *addr)

	driveWatchdog(core)
}

// driveWatchdog periodically expires write transactions that have
// overstayed their timeout, freeing the writer slot they were holding.  A
// real transport would instead drive this off its own event loop between
// handling requests; confd has no transport of its own, so a ticker
// stands in for it.
func driveWatchdog(core *cfgcore.Core) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for now := range ticker.C {
		core.ExpireTimeouts(now)
	}
}
