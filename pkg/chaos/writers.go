package chaos

import (
	"bytes"
	"net/http"
	"strconv"
)

// bufferingWriter captures a handler's response so it can be rewritten before
// it reaches the client.
type bufferingWriter struct {
	w      http.ResponseWriter
	status int
	buf    bytes.Buffer
}

// Header returns the header map
func (bw *bufferingWriter) Header() http.Header {
	return bw.w.Header()
}

// WriteHeader records the status code; only the first call counts
func (bw *bufferingWriter) WriteHeader(statusCode int) {
	if bw.status == 0 {
		bw.status = statusCode
	}
}

// Write buffers p
func (bw *bufferingWriter) Write(p []byte) (int, error) {
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	return bw.buf.Write(p)
}

// Unwrap returns the underlying ResponseWriter
func (bw *bufferingWriter) Unwrap() http.ResponseWriter {
	return bw.w
}

func (bw *bufferingWriter) statusOrOK() int {
	if bw.status == 0 {
		return http.StatusOK
	}
	return bw.status
}

// TruncatingWriter delivers only the leading percentage of a response body.
//
// The declared Content-Length is the full body length, so clients observe an
// unexpected EOF rather than a short but well-formed response.
type TruncatingWriter struct {
	bufferingWriter
	percent float64
}

// NewTruncatingWriter wraps w so that Finish sends percent% of the body.
func NewTruncatingWriter(w http.ResponseWriter, percent float64) *TruncatingWriter {
	return &TruncatingWriter{bufferingWriter: bufferingWriter{w: w}, percent: percent}
}

// Finish writes the truncated response to the underlying writer.
func (tw *TruncatingWriter) Finish() error {
	body := tw.buf.Bytes()
	h := tw.w.Header()
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	tw.w.WriteHeader(tw.statusOrOK())
	_, err := tw.w.Write(body[:truncateAt(len(body), tw.percent)])
	return err
}

// CorruptingWriter mangles a response body before delivering it.
type CorruptingWriter struct {
	bufferingWriter
	corruption CorruptionType
	src        Source
}

// NewCorruptingWriter wraps w so that Finish sends a corrupted body. A nil src
// uses DefaultSource.
func NewCorruptingWriter(w http.ResponseWriter, corruption CorruptionType, src Source) *CorruptingWriter {
	return &CorruptingWriter{
		bufferingWriter: bufferingWriter{w: w},
		corruption:      corruption,
		src:             sourceOrDefault(src),
	}
}

// Finish writes the corrupted response to the underlying writer.
func (cw *CorruptingWriter) Finish() error {
	body := CorruptPayload(cw.buf.Bytes(), cw.corruption, cw.src)
	cw.w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	cw.w.WriteHeader(cw.statusOrOK())
	_, err := cw.w.Write(body)
	return err
}

// CorruptPayload returns a corrupted copy of body. The input is not modified.
//
//   - random_bytes overwrites about 10% of the bytes (at least one)
//   - truncate keeps the first 50-90% of the body
//   - bit_flip flips one random bit in about 10% of the bytes (at least one)
//   - none returns an unmodified copy
func CorruptPayload(body []byte, corruption CorruptionType, src Source) []byte {
	out := bytes.Clone(body)
	if len(out) == 0 {
		return out
	}
	src = sourceOrDefault(src)

	switch corruption {
	case CorruptionNone:
		return out
	case CorruptionTruncate:
		pct := 50 + float64(src.IntN(41))
		return out[:truncateAt(len(out), pct)]
	case CorruptionBitFlip:
		for range corruptCount(len(out)) {
			idx := src.IntN(len(out))
			out[idx] ^= 1 << src.IntN(8)
		}
		return out
	default:
		for range corruptCount(len(out)) {
			out[src.IntN(len(out))] = byte(src.IntN(256))
		}
		return out
	}
}

func corruptCount(n int) int {
	return max(1, n/10)
}

func truncateAt(n int, percent float64) int {
	if percent >= 100 {
		return n
	}
	if percent <= 0 {
		return 0
	}
	return int(float64(n) * percent / 100)
}
