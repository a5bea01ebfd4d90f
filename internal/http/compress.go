package httpx

import (
	"compress/gzip"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressionConfig configures the gzip middleware.
type CompressionConfig struct {
	Level  int // 1-9; anything else means gzip.DefaultCompression
	Logger *slog.Logger
}

// compressibleTypes are the only media types gzipped. Event streams and HTML
// redirects are written as-is.
var compressibleTypes = map[string]bool{
	"application/json": true,
	"text/plain":       true,
}

// Compression gzips JSON and plain text responses for clients that accept it.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writers := sync.Pool{New: func() any {
		zw, _ := gzip.NewWriterLevel(io.Discard, level)
		return zw
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Accept-Encoding")

			cw := &compressWriter{ResponseWriter: w, pool: &writers}
			defer func() {
				if err := cw.finish(); err != nil {
					logger.ErrorContext(r.Context(), "gzip close failed", "error", err)
				}
			}()
			next.ServeHTTP(cw, r)
		})
	}
}

// acceptsGzip reports whether the Accept-Encoding header lists gzip with a
// non-zero quality.
func acceptsGzip(header string) bool {
	for part := range strings.SplitSeq(header, ",") {
		coding, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		name, value, ok := strings.Cut(strings.ReplaceAll(params, " ", ""), "=")
		if !ok || !strings.EqualFold(name, "q") {
			return true
		}
		q, err := strconv.ParseFloat(value, 64)
		return err == nil && q > 0
	}
	return false
}

// compressWriter decides on the first header write whether to compress.
type compressWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	gz      *gzip.Writer
	decided bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.decided {
		return
	}
	w.decided = true
	h := w.Header()
	if shouldCompress(status, h) {
		w.gz = w.pool.Get().(*gzip.Writer) //nolint:forcetypeassert // pool only holds gzip writers
		w.gz.Reset(w.ResponseWriter)
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if !w.decided {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.gz == nil {
		return w.ResponseWriter.Write(p)
	}
	return w.gz.Write(p)
}

func (w *compressWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// finish flushes the gzip trailer and returns the writer to the pool.
func (w *compressWriter) finish() error {
	if w.gz == nil {
		return nil
	}
	err := w.gz.Close()
	w.gz.Reset(io.Discard)
	w.pool.Put(w.gz)
	w.gz = nil
	return err
}

func shouldCompress(status int, h http.Header) bool {
	switch {
	case status < http.StatusOK, status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	case h.Get("Content-Encoding") != "":
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && compressibleTypes[mediaType]
}
