// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lazyexec

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gate.computer/lazyexec/internal/logging"
	"gate.computer/lazyexec/loader"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xyproto/env/v2"
	"import.name/confi"
	"import.name/pan"

	. "import.name/pan/mustcheck"
)

type Config struct {
	Loader loader.Config

	Log struct {
		Journal bool
		Debug   bool
	}

	Metrics struct {
		Listen string
	}
}

var c = new(Config)

func Main() {
	defer func() {
		pan.Fatal(recover())
	}()

	os.Exit(mainResult())
}

func mainResult() int {
	c.Loader = loader.DefaultConfig
	c.Log.Journal = env.Bool("LAZYEXEC_LOG_JOURNAL")
	c.Log.Debug = env.Bool("LAZYEXEC_LOG_DEBUG")
	c.Metrics.Listen = env.Str("LAZYEXEC_METRICS_LISTEN")

	flag.Var(confi.FileReader(c), "f", "read a configuration file")
	flag.Var(confi.Assigner(c), "o", "set a configuration option (path.to.key=value)")
	configUsage := confi.FlagUsage(nil, c)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] program [args...]\n\n", flag.CommandLine.Name())
		configUsage()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	log, err := logging.Init(c.Log.Journal, c.Log.Debug)
	if err != nil {
		log.Error("journal initialization failed", "error", err)
		return 1
	}

	if c.Metrics.Listen != "" {
		serveMetrics(Must(net.Listen("tcp", c.Metrics.Listen)), log)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	path := flag.Arg(0)

	opt := loader.Options{
		Started: func(thread int) {
			if _, err := daemon.SdNotify(false, fmt.Sprintf("%s\nSTATUS=running %s\nMAINPID=%d", daemon.SdNotifyReady, path, os.Getpid())); err != nil {
				log.Warn("systemd notification failed", "error", err)
			}
		},
		Log: log,
	}

	if err := loader.Initialize(&c.Loader, opt); err != nil {
		log.Error("loader initialization failed", "error", err)
		return 1
	}

	err = loader.Execute(ctx, path, flag.Args(), os.Environ())
	if ctx.Err() != nil {
		log.Info("interrupted")
		return 130
	}

	log.Error("execution failed", "path", path, "error", err)
	return 1
}

func serveMetrics(l net.Listener, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("serving metrics", "addr", l.Addr().String())

	go func() {
		if err := http.Serve(l, mux); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()
}
