// Copyright (c) 2024 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"import.name/sjournal"
)

// Init returns some kind of logger on error.
func Init(journal, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if !journal {
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(log)
		return log, nil
	}

	opts := &sjournal.HandlerOptions{
		Delimiter:  sjournal.ColonDelimiter,
		TimeFormat: time.RFC3339Nano,
	}

	h, err := sjournal.NewHandler(opts)
	if err != nil {
		return slog.Default(), err
	}

	log := slog.New(levelHandler{h, level})

	slog.SetDefault(log)
	slog.SetLogLoggerLevel(level)

	return log, nil
}

// levelHandler drops records below a minimum level.
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelHandler{h.Handler.WithAttrs(attrs), h.level}
}

func (h levelHandler) WithGroup(name string) slog.Handler {
	return levelHandler{h.Handler.WithGroup(name), h.level}
}
