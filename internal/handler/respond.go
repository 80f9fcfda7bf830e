package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dinetab/api/internal/service"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// statusOf maps a service error kind to an HTTP status. Unclassified errors
// are internal.
func statusOf(err error) int {
	switch service.KindOf(err) {
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the error's status and reason code. op names
// the failed operation in the log line for internal errors, whose message is
// not exposed.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	writeServiceErrorStatus(w, op, err, statusOf(err))
}

func writeServiceErrorStatus(w http.ResponseWriter, op string, err error, status int) {
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", op, err)
		body := map[string]string{"error": "internal server error"}
		if code := service.ReasonOf(err); code != "" {
			body["error"] = err.Error()
			body["code"] = code
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  service.ReasonOf(err),
	})
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
