package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// encodings in preference order.
var encodings = []string{"zstd", "br", "gzip"}

// compressMiddleware compresses responses with the best encoding the
// client accepts. WebSocket upgrades and HEAD requests pass through.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		enc := negotiateEncoding(parseAcceptEncoding(r.Header.Get("Accept-Encoding")))
		if enc == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: enc}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}

func parseAcceptEncoding(header string) map[string]bool {
	accepted := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		enc := strings.TrimSpace(part)
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			if strings.TrimSpace(enc[i+1:]) == "q=0" {
				continue
			}
			enc = enc[:i]
		}
		if enc != "" {
			accepted[strings.ToLower(enc)] = true
		}
	}
	return accepted
}

func negotiateEncoding(accepted map[string]bool) string {
	for _, enc := range encodings {
		if accepted[enc] {
			return enc
		}
	}
	return ""
}

type compressWriter struct {
	http.ResponseWriter
	encoding string
	writer   io.WriteCloser
	decided  bool
	passThru bool
}

func (cw *compressWriter) WriteHeader(code int) {
	cw.decide(code)
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	cw.decide(http.StatusOK)
	if cw.passThru {
		return cw.ResponseWriter.Write(b)
	}
	return cw.writer.Write(b)
}

// decide runs once, before the first byte or status goes out.
func (cw *compressWriter) decide(code int) {
	if cw.decided {
		return
	}
	cw.decided = true

	h := cw.Header()
	if h.Get("Content-Encoding") != "" || code == http.StatusNoContent || code == http.StatusNotModified {
		cw.passThru = true
		return
	}
	if ct := h.Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") || strings.HasPrefix(ct, "image/") {
		cw.passThru = true
		return
	}

	h.Del("Content-Length")
	h.Set("Content-Encoding", cw.encoding)
	h.Add("Vary", "Accept-Encoding")

	switch cw.encoding {
	case "zstd":
		enc, _ := zstd.NewWriter(cw.ResponseWriter, zstd.WithEncoderLevel(zstd.SpeedFastest))
		cw.writer = enc
	case "br":
		cw.writer = brotli.NewWriterLevel(cw.ResponseWriter, brotli.BestSpeed)
	default:
		gz, _ := gzip.NewWriterLevel(cw.ResponseWriter, gzip.BestSpeed)
		cw.writer = gz
	}
}

func (cw *compressWriter) finish() {
	if cw.writer != nil {
		_ = cw.writer.Close()
	}
}

func (cw *compressWriter) Flush() {
	if cw.writer != nil {
		if f, ok := cw.writer.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
