package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"

	"tutord/internal/logging"
)

// requestLogger returns l, optionally re-leveled for this request via
// ?log=<level> (or ?log=1 for debug) or the X-Log-Level header.
func requestLogger(l zerolog.Logger, r *http.Request) zerolog.Logger {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return l.Level(zerolog.DebugLevel)
		}
		return l.Level(logging.ParseLevel(v))
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return l.Level(logging.ParseLevel(v))
	}
	return l
}
