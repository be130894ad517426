package audit

import (
	"net/http"
	"strings"
	"time"
)

// RequestMeta carries the raw request-side observations of one captured
// request. Zero values degrade to safe defaults during Build.
type RequestMeta struct {
	// ID is the identifier minted when capture began. Build mints a fresh
	// one when empty.
	ID string

	// StartTime is when the middleware began observing the request.
	// The zero value means no start time was captured.
	StartTime time.Time

	Method    string
	Hostname  string
	URL       string
	Route     string // framework-matched template, "" when unavailable
	IP        string
	UserAgent string

	User      string // authenticated principal, "" when anonymous
	SessionID string
	// CorrelationID is the caller-supplied trace header value, "" when absent.
	CorrelationID string

	Params  any
	Query   any
	Headers any
	Body    any

	RequestSize int64
}

// ResponseMeta carries the raw response-side observations.
type ResponseMeta struct {
	StatusCode int
	// StatusText is the framework's status message, "" to derive one.
	StatusText   string
	Body         any
	ResponseSize int64
	// BodyTruncated marks that the captured body was cut at the capture
	// limit and Body is a prefix of what the client received.
	BodyTruncated bool
}

// Build assembles an immutable LogEntry from raw request/response metadata.
// It never fails: malformed or missing fields degrade to safe defaults so a
// log entry is always producible.
func Build(req RequestMeta, resp ResponseMeta) *LogEntry {
	now := time.Now()

	id := req.ID
	if id == "" {
		id = newID()
	}

	entry := &LogEntry{
		ID:           id,
		Timestamp:    now,
		IP:           orUnknown(req.IP),
		UserAgent:    orUnknown(req.UserAgent),
		User:         optional(req.User),
		Method:       strings.ToUpper(req.Method),
		Hostname:     req.Hostname,
		URL:          req.URL,
		Route:        optional(req.Route),
		StatusCode:   resp.StatusCode,
		Action:       ClassifyAction(req.Method + " " + req.URL),
		Entity:       ClassifyEntity(req.URL),
		RequestSize:  req.RequestSize,
		ResponseSize: resp.ResponseSize,
		Details: Details{
			Params:  Redact(req.Params),
			Query:   Redact(req.Query),
			Headers: Redact(req.Headers),
			Body:    Redact(req.Body),
		},
		ResponseBody:          Redact(resp.Body),
		ResponseBodyTruncated: resp.BodyTruncated,
		SessionID:             optional(req.SessionID),
		CorrelationID:         req.CorrelationID,
	}

	if !req.StartTime.IsZero() {
		ms := now.Sub(req.StartTime).Milliseconds()
		entry.ExecutionTime = &ms
	}

	if entry.CorrelationID == "" {
		entry.CorrelationID = id
	}

	if resp.StatusCode >= http.StatusBadRequest {
		entry.Error = &ErrorInfo{
			Code:    resp.StatusCode,
			Message: statusMessage(resp.StatusCode, resp.StatusText),
		}
	}

	return entry
}

func statusMessage(code int, text string) string {
	if text != "" {
		return text
	}
	if msg := http.StatusText(code); msg != "" {
		return msg
	}
	return "Unknown Error"
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
