package requestlogger

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog"
)

// Middleware writes one access log line per request. Requests whose path
// starts with one of pathPrefixFilters, such as probes and metric scrapes,
// are not logged.
func Middleware(logger zerolog.Logger, pathPrefixFilters ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			for _, filter := range pathPrefixFilters {
				if strings.HasPrefix(r.URL.Path, filter) {
					next.ServeHTTP(w, r)
					return
				}
			}

			requestID := middleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "n/a"
			}

			log := logger.With().Str("request_id", requestID).Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				t2 := time.Now()

				bytesIn, err := strconv.Atoi(r.Header.Get("Content-Length"))
				if err != nil {
					bytesIn = 0
				}

				log.Info().Timestamp().Fields(map[string]interface{}{
					"remote_ip":  r.RemoteAddr,
					"request":    fmt.Sprintf("%s %s (response_code: %d)", r.Method, r.URL.Path, ww.Status()),
					"proto":      r.Proto,
					"browser":    browser(r.Header.Get("User-Agent")),
					"latency_ms": float64(t2.Sub(t1).Nanoseconds()) / 1000000.0,
					"bytes_in":   bytesIn,
					"bytes_out":  ww.BytesWritten(),
				}).Msg("incoming_request")
			}()

			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(fn)
	}
}

func browser(userAgent string) string {
	ua := useragent.Parse(userAgent)

	switch {
	case ua.Name == "":
		return "unknown"
	case ua.OS == "":
		return ua.Name
	default:
		return fmt.Sprintf("%s (%s)", ua.Name, ua.OS)
	}
}
