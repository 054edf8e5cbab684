package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// setupLog discards log output unless debug logging to a file is
// configured. The returned closer flushes the log file, if any.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	if !viper.GetBool("debug") {
		return func() error { return nil }, nil
	}
	path := viper.GetString("log-file")
	if path == "" {
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(expandPath(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	log.SetTimeFormat(time.Kitchen)
	return f.Close, nil
}
