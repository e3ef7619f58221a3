package transporthttp

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/domain"
)

type Problem struct {
	Type        string              `json:"type,omitempty"`
	Title       string              `json:"title,omitempty"`
	Status      int                 `json:"status,omitempty"`
	Detail      string              `json:"detail,omitempty"`
	Instance    string              `json:"instance,omitempty"`
	Code        string              `json:"code,omitempty"`
	Errors      map[string][]string `json:"errors,omitempty"`
	FieldErrors []domain.FieldError `json:"field_errors,omitempty"`
	Retryable   bool                `json:"retryable,omitempty"`
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, errs map[string][]string) {
	writeProblem(w, Problem{Title: title, Status: status, Detail: detail, Errors: errs})
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case apperr.KindBadInput:
		if e.Code == apperr.CodeIDConflict || e.Code == apperr.CodeDuplicateSubmission {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	}
	if e.Retryable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError renders err as a problem document. Causes of internal
// failures are logged and never rendered.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := StatusFor(err)
	p := Problem{Status: status, Title: http.StatusText(status), Instance: r.URL.Path}

	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(apperr.CodeWriteFailure, "unexpected failure", err)
	}
	p.Code = e.Code
	p.Detail = e.Message
	p.Retryable = e.Retryable
	if len(e.FieldErrors) > 0 {
		p.FieldErrors = e.FieldErrors
		p.Errors = map[string][]string{}
		for _, fe := range e.FieldErrors {
			p.Errors[fe.Field] = append(p.Errors[fe.Field], fe.Msg)
		}
	}

	if e.Kind == apperr.KindInternal && logger != nil {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("code", e.Code),
			zap.Error(err),
		)
	}
	if e.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeProblem(w, p)
}
