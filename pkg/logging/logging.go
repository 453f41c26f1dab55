package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var logFile *os.File

/*
Config selects how the process-wide charmbracelet logger writes. Format is
one of text, json or logfmt. An empty File keeps output on stderr.
*/
type Config struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	ReportCaller bool   `mapstructure:"reportCaller"`
}

var formatters = map[string]log.Formatter{
	"":       log.TextFormatter,
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// Formats lists the accepted values of Config.Format.
func Formats() []string {
	return []string{"text", "json", "logfmt"}
}

// Init configures the default logger. Calling it again replaces the previous
// configuration and closes a previously opened log file.
func Init(config Config) error {
	level := log.InfoLevel

	if config.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(config.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}

		level = parsed
	}

	formatter, ok := formatters[strings.ToLower(config.Format)]
	if !ok {
		return fmt.Errorf("invalid log format %q", config.Format)
	}

	var out io.Writer = os.Stderr

	if config.File != "" {
		file, err := os.OpenFile(config.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.File, err)
		}

		Close()
		logFile = file
		out = file
	}

	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(formatter)
	log.SetReportCaller(config.ReportCaller)
	log.SetReportTimestamp(true)

	log.Debug("logging initialized", "level", level, "format", config.Format, "file", config.File)
	return nil
}

// Close closes the log file, if any, and sends output back to stderr.
func Close() {
	if logFile == nil {
		return
	}

	log.SetOutput(os.Stderr)
	logFile.Close()
	logFile = nil
}
