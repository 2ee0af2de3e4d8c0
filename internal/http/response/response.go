// Package response writes the collector's JSON bodies. Every failure is
// {"kind":"<stable>","message":"<human>"} so callers can switch on kind
// without parsing prose.
package response

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// Stable error kinds. The HTTP status follows the kind.
const (
	KindAuthentication = "authentication_error"
	KindValidation     = "validation_error"
	KindNotFound       = "not_found"
	KindConflict       = "conflict_error"
	KindStorage        = "storage_error"
	KindInternal       = "internal_error"
)

var statusFor = map[string]int{
	KindAuthentication: fasthttp.StatusUnauthorized,
	KindValidation:     fasthttp.StatusBadRequest,
	KindNotFound:       fasthttp.StatusNotFound,
	KindConflict:       fasthttp.StatusConflict,
	KindStorage:        fasthttp.StatusServiceUnavailable,
	KindInternal:       fasthttp.StatusInternalServerError,
}

// JSON writes data with the given status.
func JSON(ctx *fasthttp.RequestCtx, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"kind":"internal_error","message":"failed to encode response"}`)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// Error writes the error envelope for kind.
func Error(ctx *fasthttp.RequestCtx, kind, message string) {
	status, ok := statusFor[kind]
	if !ok {
		status = fasthttp.StatusInternalServerError
	}
	JSON(ctx, status, map[string]string{"kind": kind, "message": message})
}
