// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/authutil"
	"github.com/dalemusser/studyhub/internal/app/system/inputval"
	"go.uber.org/zap"
)

// Body is the JSON error envelope.
type Body struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Redirect string `json:"redirect,omitempty"`
}

// Codes shared by several features.
const (
	CodeBadRequest  = "bad-request"
	CodeValidation  = "validation"
	CodeNotFound    = "not-found"
	CodeForbidden   = "forbidden"
	CodeServerError = "server-error"
)

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Render writes an error body with status.
func Render(w http.ResponseWriter, status int, b Body) {
	WriteJSON(w, status, b)
}

// RenderBadRequest answers 400 for malformed input.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	Render(w, http.StatusBadRequest, Body{Error: msg, Code: CodeBadRequest})
}

// RenderValidation answers 400 with the first field message of a validation error.
func RenderValidation(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	var ve *inputval.ValidationError
	if stderrors.As(err, &ve) && len(ve.Errors) > 0 {
		msg = ve.Errors[0].Message
	}
	Render(w, http.StatusBadRequest, Body{Error: msg, Code: CodeValidation})
}

// RenderNotFound answers 404.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	Render(w, http.StatusNotFound, Body{Error: msg, Code: CodeNotFound})
}

// RenderForbidden answers 403.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg string) {
	Render(w, http.StatusForbidden, Body{Error: msg, Code: CodeForbidden})
}

// RenderConflict answers 409. redirect, when set, tells the client where to go instead.
func RenderConflict(w http.ResponseWriter, r *http.Request, code, msg, redirect string) {
	Render(w, http.StatusConflict, Body{Error: msg, Code: code, Redirect: redirect})
}

// RenderAuthError maps an auth failure to its status and fixed message.
func RenderAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code := authutil.Code(err)
	if code == "" {
		code = CodeServerError
	}
	Render(w, authutil.Status(err), Body{Error: authutil.Message(err), Code: code})
}

// ErrorLogger logs server-side failures before answering 500.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger returns an ErrorLogger writing to log.
func NewErrorLogger(log *zap.Logger) ErrorLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return ErrorLogger{Log: log}
}

// LogServerError logs err with request context and answers 500 with msg.
func (el ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	el.Log.Error(msg, fields...)
	Render(w, http.StatusInternalServerError, Body{Error: msg, Code: CodeServerError})
}

// LogUnavailable is LogServerError with 503, for backend outages.
func (el ErrorLogger) LogUnavailable(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err), zap.String("path", r.URL.Path))
	el.Log.Error(msg, fields...)
	Render(w, http.StatusServiceUnavailable, Body{Error: msg, Code: "unavailable"})
}
