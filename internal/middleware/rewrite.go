package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/radif/envelope/internal/observability"
	"github.com/radif/envelope/internal/response"
)

// Options configures the Translator and the Rewriter.
type Options struct {
	// DiagnosticsVisible lets envelopes carry raw error messages and stack traces.
	DiagnosticsVisible bool
	// DocsPrefix is the request path prefix of the documentation endpoint.
	DocsPrefix string
	// DocsMarkers are top-level keys identifying an API description document.
	DocsMarkers []string
	Logger      *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Exchange is a buffered downstream response together with the request path
// that produced it.
type Exchange struct {
	Path   string
	Status int
	Header http.Header
	Body   []byte

	// Value is the body parsed as generic JSON (numbers as json.Number). It is
	// nil when the body is empty or malformed.
	Value any
	// ParseErr is set when a non-empty body is not valid JSON.
	ParseErr error
}

// NewExchange buffers a downstream response and parses its body.
func NewExchange(path string, status int, header http.Header, body []byte) *Exchange {
	x := &Exchange{Path: path, Status: status, Header: header, Body: body}
	if len(body) == 0 {
		return x
	}
	x.Value, x.ParseErr = parseJSON(body)
	return x
}

// Object returns the parsed body when it is a JSON object.
func (x *Exchange) Object() (map[string]any, bool) {
	obj, ok := x.Value.(map[string]any)
	return obj, ok
}

// Outcome is the response that replaces the downstream one. A nil Envelope
// means the downstream body is passed through unchanged.
type Outcome struct {
	Rule     string
	Status   int
	Envelope *response.Envelope
}

// Rewriter wraps every downstream response in the uniform envelope.
type Rewriter struct {
	diagnostics bool
	docsPrefix  string
	docsMarkers []string
	rules       []Rule
	logger      *slog.Logger
}

// NewRewriter returns a Rewriter configured by opts.
func NewRewriter(opts Options) *Rewriter {
	rw := &Rewriter{
		diagnostics: opts.DiagnosticsVisible,
		docsPrefix:  opts.DocsPrefix,
		docsMarkers: opts.DocsMarkers,
		logger:      opts.logger(),
	}
	rw.rules = rw.defaultRules()
	return rw
}

// Rules returns the classification rules in evaluation order.
func (rw *Rewriter) Rules() []Rule {
	return append([]Rule(nil), rw.rules...)
}

// Classify runs the rules in order and returns the outcome of the first match.
func (rw *Rewriter) Classify(x *Exchange) Outcome {
	for _, rule := range rw.rules {
		if rule.Match(x) {
			out := rule.Apply(x)
			out.Rule = rule.Name
			return out
		}
	}
	// The last rule matches everything; this is never reached.
	return Outcome{Rule: RuleSuccessEmpty, Status: x.Status}
}

// Middleware buffers the downstream response, classifies it and writes the
// replacement. Responses already written by the Translator are passed through.
func (rw *Rewriter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := newCaptureWriter()
		next.ServeHTTP(cw, r.WithContext(withCapture(r.Context(), cw)))

		if cw.handled.Load() {
			writePassthrough(w, cw.header, cw.statusCode, cw.body.Bytes())
			return
		}

		x := NewExchange(r.URL.Path, cw.statusCode, cw.header, cw.body.Bytes())
		if x.ParseErr != nil {
			observability.MalformedBodiesTotal.Inc()
		}

		out := rw.Classify(x)
		observability.RewritesTotal.WithLabelValues(out.Rule).Inc()
		rw.logger.Debug("response classified",
			"rule", out.Rule,
			"path", x.Path,
			"status", x.Status,
			"final_status", out.Status,
		)

		rw.write(w, x, out)
	})
}

func (rw *Rewriter) write(w http.ResponseWriter, x *Exchange, out Outcome) {
	if out.Envelope == nil {
		writePassthrough(w, x.Header, out.Status, x.Body)
		return
	}

	body, err := json.Marshal(out.Envelope)
	if err != nil {
		rw.logger.Error("encode envelope", "rule", out.Rule, "path", x.Path, "error", err)
		writePassthrough(w, x.Header, x.Status, x.Body)
		return
	}

	h := w.Header()
	h.Set("Content-Type", response.ContentTypeJSON)
	copyHeaders(h, x.Header, "Content-Length")
	w.WriteHeader(out.Status)
	if bodyAllowed(out.Status) {
		_, _ = w.Write(body)
	}
}

func writePassthrough(w http.ResponseWriter, header http.Header, status int, body []byte) {
	if !bodyAllowed(status) {
		copyHeaders(w.Header(), header, "Content-Length")
		w.WriteHeader(status)
		return
	}
	copyHeaders(w.Header(), header)
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// parseJSON decodes body as a single generic JSON value.
func parseJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}
