package logger

import (
	"errors"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

// Failure logs a failed operation. Business rule violations are expected traffic and go to
// debug; anything else is an infrastructure fault logged as db_transaction_failed.
func Failure(l Logger, operation, message, requestID string, details map[string]interface{}, err error) {
	merged := map[string]interface{}{"operation": operation}
	for k, v := range details {
		merged[k] = v
	}

	var de *domain.Error
	if errors.As(err, &de) {
		merged["code"] = de.Code
		merged["reason"] = de.Message
		l.Debug(operation, message, requestID, merged)
		return
	}
	l.Error("db_transaction_failed", message, requestID, merged, err)
}
