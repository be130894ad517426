package audit

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Middleware creates the capture middleware. At request start it records the
// start time, mints the entry id and wraps the response writer so the
// outgoing body can be captured. After the handler completes it builds the
// redacted entry and enqueues it; pipeline work never blocks or fails the
// request path.
func Middleware(p *Pipeline) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p == nil {
				return next(c)
			}

			start := time.Now()
			entryID := newID()
			c.Set(string(entryIDKey), entryID)

			req := c.Request()

			// Echo the request id back for client-side correlation.
			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, requestID)

			// Capture the request body and restore it for the handler.
			var requestBody any
			if req.Body != nil && req.ContentLength > 0 && req.ContentLength <= MaxBodyCapture {
				if bodyBytes, err := io.ReadAll(req.Body); err == nil {
					requestBody = parseBody(bodyBytes)
					req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				}
			}

			capture := &responseBodyCapture{
				ResponseWriter: c.Response().Writer,
				body:           &bytes.Buffer{},
			}
			c.Response().Writer = capture

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			p.capture(c, start, entryID, requestBody, capture)
			return err
		}
	}
}

// capture builds the entry from the completed exchange and enqueues it.
// Any panic during metadata extraction is recovered; audit failures must
// never surface on the request path.
func (p *Pipeline) capture(c echo.Context, start time.Time, entryID string, requestBody any, capture *responseBodyCapture) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audit capture panicked", "entry_id", entryID, "panic", r)
		}
	}()

	req := c.Request()

	meta := RequestMeta{
		ID:            entryID,
		StartTime:     start,
		Method:        req.Method,
		Hostname:      req.Host,
		URL:           req.URL.RequestURI(),
		Route:         c.Path(),
		IP:            c.RealIP(),
		UserAgent:     req.UserAgent(),
		User:          contextString(c, userKey),
		SessionID:     contextString(c, sessionKey),
		CorrelationID: req.Header.Get(CorrelationHeader),
		Params:        pathParams(c),
		Query:         valuesToMap(req.URL.Query()),
		Headers:       headersToMap(req.Header),
		Body:          requestBody,
		RequestSize:   parseSizeHeader(req.Header.Get(echo.HeaderContentLength)),
	}

	resp := ResponseMeta{
		StatusCode:    c.Response().Status,
		Body:          capture.parsed(c.Response().Header().Get(echo.HeaderContentEncoding)),
		ResponseSize:  parseSizeHeader(c.Response().Header().Get(echo.HeaderContentLength)),
		BodyTruncated: capture.truncated,
	}
	if resp.ResponseSize == 0 {
		resp.ResponseSize = c.Response().Size
	}

	p.Enqueue(Build(meta, resp))
}

// EntryID returns the entry id minted for the in-flight request, "" when the
// capture middleware is not installed.
func EntryID(c echo.Context) string {
	id, _ := c.Get(string(entryIDKey)).(string)
	return id
}

// SetUser attaches the authenticated principal to the in-flight request so
// the captured entry can reference it.
func SetUser(c echo.Context, userID string) {
	c.Set(string(userKey), userID)
}

// SetSession attaches the session identifier to the in-flight request.
func SetSession(c echo.Context, sessionID string) {
	c.Set(string(sessionKey), sessionID)
}

func contextString(c echo.Context, key contextKey) string {
	s, _ := c.Get(string(key)).(string)
	return s
}

// responseBodyCapture wraps http.ResponseWriter to retain the outgoing body.
// It delegates Flush and Hijack to the underlying writer when supported.
type responseBodyCapture struct {
	http.ResponseWriter
	body      *bytes.Buffer
	truncated bool
}

func (r *responseBodyCapture) Write(b []byte) (int, error) {
	if r.body.Len() < MaxBodyCapture {
		r.body.Write(b)
		if r.body.Len() >= MaxBodyCapture {
			r.truncated = true
		}
	}
	return r.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for SSE responses.
func (r *responseBodyCapture) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker for connection upgrades.
func (r *responseBodyCapture) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// parsed decompresses and decodes the captured response body.
func (r *responseBodyCapture) parsed(contentEncoding string) any {
	if r == nil || r.body.Len() == 0 {
		return nil
	}
	bodyBytes := r.body.Bytes()
	if decompressed, ok := decompressBody(bodyBytes, contentEncoding); ok {
		bodyBytes = decompressed
	}
	return parseBody(bodyBytes)
}

// parseBody decodes JSON payloads into JSON-shaped values; anything else is
// kept as a valid UTF-8 string.
func parseBody(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(b, &parsed); err == nil {
		return parsed
	}
	return toValidUTF8String(b)
}

// pathParams collects the framework-matched path parameters.
func pathParams(c echo.Context) any {
	names := c.ParamNames()
	if len(names) == 0 {
		return map[string]any{}
	}
	params := make(map[string]any, len(names))
	for _, name := range names {
		params[name] = c.Param(name)
	}
	return params
}

// valuesToMap flattens url.Values, keeping the first value per key.
func valuesToMap(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

// headersToMap flattens http.Header, keeping the first value per key.
func headersToMap(headers http.Header) map[string]any {
	return valuesToMap(headers)
}

// parseSizeHeader parses a byte-count header, defaulting to 0.
func parseSizeHeader(value string) int64 {
	if value == "" {
		return 0
	}
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}

// toValidUTF8String converts bytes to a valid UTF-8 string so the record
// store never rejects a document over encoding.
func toValidUTF8String(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// decompressBody attempts to decompress a response body based on its
// Content-Encoding. Returns the original body and false when no
// decompression applies or it fails. Supports gzip, deflate and brotli.
func decompressBody(body []byte, contentEncoding string) ([]byte, bool) {
	if len(body) == 0 || contentEncoding == "" {
		return body, false
	}

	encoding := strings.ToLower(strings.TrimSpace(strings.Split(contentEncoding, ",")[0]))
	if encoding == "" || encoding == "identity" {
		return body, false
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body, false
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(body))
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, false
	}

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize))
	if err != nil {
		return body, false
	}
	return decompressed, true
}
