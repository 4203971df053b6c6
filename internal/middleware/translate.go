package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/radif/envelope/internal/apierr"
	"github.com/radif/envelope/internal/observability"
	"github.com/radif/envelope/internal/response"
)

const (
	msgUnauthorized = "Unauthorized Access"
	msgUnhandled    = "An unhandled error occurred."
)

// Error kinds, used as metric labels.
const (
	KindKnown        = "known"
	KindUnauthorized = "unauthorized"
	KindUnhandled    = "unhandled"
)

// HandlerFunc is an HTTP handler that reports failure by returning an error.
// Behind the rewriter, anything written before a non-nil error is discarded.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Translator converts errors raised while handling a request into a terminal
// envelope and status code.
type Translator struct {
	diagnostics bool
	logger      *slog.Logger
}

// NewTranslator returns a Translator configured by opts.
func NewTranslator(opts Options) *Translator {
	return &Translator{diagnostics: opts.DiagnosticsVisible, logger: opts.logger()}
}

// Translate maps err to a status code and envelope.
func (t *Translator) Translate(err error) (int, response.Envelope) {
	_, status, env := t.translate(err)
	return status, env
}

func (t *Translator) translate(err error) (string, int, response.Envelope) {
	var (
		kind   string
		status int
		apiErr *response.APIError
		known  *apierr.Error
	)

	switch {
	case errors.As(err, &known):
		kind = KindKnown
		status = known.StatusCode
		apiErr = known.APIError()
	case errors.Is(err, apierr.ErrUnauthorized):
		kind = KindUnauthorized
		status = http.StatusUnauthorized
		apiErr = response.NewAPIError(msgUnauthorized)
	default:
		kind = KindUnhandled
		status = http.StatusInternalServerError
		apiErr = response.NewAPIError(msgUnhandled)
		if t.diagnostics {
			apiErr.WithDetails(details(err))
		}
	}

	if !validStatus(status) {
		status = http.StatusInternalServerError
	}
	return kind, status, response.Exception(status, apiErr)
}

// Write translates err and writes the envelope. Output the handler wrote
// before failing is discarded, and the rewriter leaves the response alone.
func (t *Translator) Write(w http.ResponseWriter, r *http.Request, err error) {
	kind, status, env := t.translate(err)
	observability.TranslationsTotal.WithLabelValues(kind).Inc()

	attrs := []any{
		"kind", kind,
		"status", status,
		"path", r.URL.Path,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"error", err,
	}
	if kind == KindUnhandled {
		t.logger.Error("unhandled error", attrs...)
	} else {
		t.logger.Debug("error translated", attrs...)
	}

	claimResponse(r.Context())
	response.Write(w, env)
}

// Handle adapts an error-returning handler to http.HandlerFunc.
func (t *Translator) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			t.Write(w, r, err)
		}
	}
}

// Recover turns panics from downstream handlers into translated envelopes.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func (t *Translator) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler { //nolint:errorlint
				panic(rvr)
			}
			t.Write(w, r, &panicError{value: rvr, stack: debug.Stack()})
		}()

		next.ServeHTTP(w, r)
	})
}

// panicError wraps a recovered panic value.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// Unwrap exposes a panicked error so a panic(apierr.New(...)) is still a
// known error.
func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// details renders the innermost error message and the best stack trace
// available for err: the panic stack, the pkg/errors stack, or the current one.
func details(err error) string {
	base := err
	for next := errors.Unwrap(base); next != nil; next = errors.Unwrap(base) {
		base = next
	}
	msg := base.Error()

	var pe *panicError
	if errors.As(err, &pe) {
		return msg + "\n" + string(pe.stack)
	}
	var st stackTracer
	if errors.As(err, &st) {
		return msg + fmt.Sprintf("%+v", st.StackTrace())
	}
	// No recorded stack; the translating goroutine's is the closest there is.
	return msg + "\n" + string(debug.Stack())
}

// validStatus reports whether status can be sent as a final response code.
func validStatus(status int) bool {
	return status >= http.StatusOK && status <= 599
}
