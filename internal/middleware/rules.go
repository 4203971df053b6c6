package middleware

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/radif/envelope/internal/response"
)

// Rule names, in evaluation order.
const (
	RuleDocsPath     = "docs-path"
	RuleWrapped      = "wrapped"
	RuleDocsBody     = "docs-body"
	RuleFailure      = "failure"
	RuleSuccessBody  = "success-body"
	RuleSuccessEmpty = "success-empty"
)

const msgUnspecified = "An unspecified error occurred."

// fixedFailureMessages replace whatever a failed response carried. 204 only
// reaches the failure rule if a handler reports it as non-success.
var fixedFailureMessages = map[int]string{
	http.StatusNotFound:  "The specified URI does not exist. Please verify and try again.",
	http.StatusNoContent: "The specified URI does not contain any content.",
}

var errTrailingData = errors.New("trailing data after JSON value")

// Rule is one step of response classification.
type Rule struct {
	Name  string
	Match func(x *Exchange) bool
	Apply func(x *Exchange) Outcome
}

func (rw *Rewriter) defaultRules() []Rule {
	return []Rule{
		{Name: RuleDocsPath, Match: rw.isDocsPath, Apply: passthrough},
		{Name: RuleWrapped, Match: isWrapped, Apply: adoptInnerStatus},
		{Name: RuleDocsBody, Match: rw.isDocsBody, Apply: passthrough},
		{Name: RuleFailure, Match: isFailure, Apply: rw.wrapFailure},
		{Name: RuleSuccessBody, Match: hasBody, Apply: wrapResult},
		{Name: RuleSuccessEmpty, Match: always, Apply: wrapEmpty},
	}
}

// isDocsPath matches the documentation prefix on a path segment boundary, so
// /swagger and /swagger/index.html match but /swaggerish does not.
func (rw *Rewriter) isDocsPath(x *Exchange) bool {
	prefix := strings.TrimSuffix(rw.docsPrefix, "/")
	if prefix == "" {
		return false
	}
	return x.Path == prefix || strings.HasPrefix(x.Path, prefix+"/")
}

// isWrapped matches a body that is already an envelope, e.g. one proxied from
// another service.
func isWrapped(x *Exchange) bool {
	obj, ok := x.Object()
	if !ok {
		return false
	}
	_, ok = obj["statusCode"]
	return ok
}

func (rw *Rewriter) isDocsBody(x *Exchange) bool {
	obj, ok := x.Object()
	if !ok {
		return false
	}
	for _, marker := range rw.docsMarkers {
		if _, ok := obj[marker]; ok {
			return true
		}
	}
	return false
}

func isFailure(x *Exchange) bool {
	return !isSuccess(x.Status)
}

func hasBody(x *Exchange) bool {
	return len(x.Body) > 0
}

func always(*Exchange) bool {
	return true
}

func passthrough(x *Exchange) Outcome {
	return Outcome{Status: x.Status}
}

// adoptInnerStatus passes an existing envelope through. The envelope's status
// code is authoritative when the transport reported success.
func adoptInnerStatus(x *Exchange) Outcome {
	out := Outcome{Status: x.Status}
	if !isSuccess(x.Status) {
		return out
	}
	obj, _ := x.Object()
	if inner, ok := intField(obj, "statusCode"); ok && validStatus(inner) {
		out.Status = inner
	}
	return out
}

func (rw *Rewriter) wrapFailure(x *Exchange) Outcome {
	env := response.Failure(x.Status, rw.failureError(x))
	return Outcome{Status: x.Status, Envelope: &env}
}

func (rw *Rewriter) failureError(x *Exchange) *response.APIError {
	if msg, ok := fixedFailureMessages[x.Status]; ok {
		return response.NewAPIError(msg)
	}

	problem, _ := x.Object()
	msg := firstString(problem, "detail", "message")
	if msg == "" {
		msg = msgUnspecified
	}
	if rw.diagnostics {
		for _, key := range []string{"exceptionMessage", "stackTrace"} {
			if s := firstString(problem, key); s != "" {
				msg += "\n" + s
			}
		}
	}

	return response.NewAPIError(msg).WithValidation(problemValidationErrors(problem["errors"]))
}

// wrapResult wraps the downstream body. JSON bodies are kept verbatim; any
// other body is sent as a string.
func wrapResult(x *Exchange) Outcome {
	var result any = string(x.Body)
	if x.ParseErr == nil {
		result = json.RawMessage(x.Body)
	}
	env := response.Success(x.Status, result)
	return Outcome{Status: x.Status, Envelope: &env}
}

func wrapEmpty(x *Exchange) Outcome {
	env := response.Success(x.Status, nil)
	return Outcome{Status: x.Status, Envelope: &env}
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func intField(obj map[string]any, key string) (int, bool) {
	n, ok := obj[key].(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// problemValidationErrors reads the "errors" member of a problem document,
// either {"field": ["msg", ...]} or [{"field": "...", "message": "..."}].
func problemValidationErrors(v any) []response.ValidationError {
	var out []response.ValidationError

	switch errs := v.(type) {
	case map[string]any:
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			switch msgs := errs[field].(type) {
			case string:
				out = append(out, response.NewValidationError(field, msgs))
			case []any:
				for _, m := range msgs {
					if s, ok := m.(string); ok {
						out = append(out, response.NewValidationError(field, s))
					}
				}
			}
		}
	case []any:
		for _, item := range errs {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if msg := firstString(obj, "message"); msg != "" {
				out = append(out, response.NewValidationError(firstString(obj, "field"), msg))
			}
		}
	}

	return out
}
