package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/domain"
)

const codeInternal = "INTERNAL_ERROR"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// statusFor maps a domain code to its HTTP status. Business-rule failures are 400.
func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeInvalidInput,
		domain.CodeInsufficientStock,
		domain.CodeInsufficientPayment,
		domain.CodePaymentExists,
		domain.CodeInvalidTransition,
		domain.CodeNotCancellable,
		domain.CodeExternalProviderFailure:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error","code"}. Errors without a domain code are logged and
// answered with a generic 500 so storage details never leave the process.
func respondError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		if status := statusFor(de.Code); status != http.StatusInternalServerError {
			writeError(w, status, string(de.Code), de.Message)
			return
		}
	}

	l.Error("request_failed", "Unhandled error", logger.RequestID(r.Context()), map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	}, err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Wrap(domain.CodeInvalidInput, err, "invalid request body")
	}
	return nil
}
