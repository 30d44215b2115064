package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"voicebus.click/internal/config"
)

// setupLogging installs the default slog logger: stderr at the configured
// level and, when file logging is on, a rotating file that also keeps
// info records. The returned function closes the file.
func setupLogging(cfg *config.Config, cm *config.ConfigManager, stderr io.Writer) func() {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}
	closeFile := func() {}

	if fl := cfg.FileLogging; fl != nil && fl.Enabled {
		logFilePath := cm.ResolveLogFilePath(fl.Filename)
		logDir := filepath.Dir(logFilePath)

		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    fl.MaxSizeMB,
				MaxBackups: fl.MaxBackups,
				MaxAge:     fl.MaxAgeDays,
				Compress:   fl.Compress,
			}
			handlers = append(handlers, slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
				Level: min(level, slog.LevelInfo),
			}))
			closeFile = func() {
				if err := fileWriter.Close(); err != nil {
					slog.Warn("failed to close log file", "path", logFilePath, "error", err)
				}
			}
		}
	}

	if len(handlers) == 1 {
		slog.SetDefault(slog.New(handlers[0]))
	} else {
		slog.SetDefault(slog.New(NewMultiLevelHandler(handlers...)))
	}

	slog.Debug("logging setup completed",
		"level", level.String(),
		"handlers", len(handlers),
		"file_enabled", cfg.FileLogging != nil && cfg.FileLogging.Enabled)

	return closeFile
}
