package logging

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog/log"

	"firesmoke-api/internal/config"
)

// logdyWriter forwards each zerolog JSON line to the viewer
type logdyWriter struct {
	sink logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\r\n")
	if len(line) > 0 {
		w.sink.LogString(string(line))
	}
	return len(p), nil
}

// StartLogdy starts the embedded Logdy UI and returns a writer to tee the
// structured logs into it, plus the UI URL
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	if cfg.LogdyPort <= 0 || cfg.LogdyPort > 65535 {
		return nil, "", fmt.Errorf("invalid logdy port %d", cfg.LogdyPort)
	}

	port := strconv.Itoa(cfg.LogdyPort)
	ld := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
	}, nil)

	url := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, port)
	log.Info().Str("url", url).Msg("Logdy log viewer started")
	return &logdyWriter{sink: ld}, url, nil
}
