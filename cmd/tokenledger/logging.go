package main

import (
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/janekbaraniewski/tokenledger/internal/config"
)

// setupLogging routes the standard logger. Output is discarded unless
// TOKENLEDGER_DEBUG is set or a log file is configured.
func setupLogging(cfg config.LogConfig) func() {
	var writers []io.Writer
	if os.Getenv("TOKENLEDGER_DEBUG") != "" {
		writers = append(writers, os.Stderr)
	}

	var rotating *lumberjack.Logger
	if path := strings.TrimSpace(cfg.File); path != "" {
		rotating = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, rotating)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}

	return func() {
		if rotating != nil {
			_ = rotating.Close()
		}
	}
}
