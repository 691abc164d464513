package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request id (server-side)
//   - Mapped to a coded user message via report.MapError
//   - Given an HTTP status derived from that code
//   - Rendered as JSON, an HTMX fragment or an HTML page, depending on the request

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetconv/internal/logging"
	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/web/templates"
)

// errNoFile is returned when a multipart request carries no file part.
var errNoFile = errors.New("no file provided")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// codeStatus maps message codes to HTTP status codes. Unlisted codes are 500.
var codeStatus = map[string]int{
	"FILE001": http.StatusRequestEntityTooLarge,
	"FILE002": http.StatusBadRequest,
	"FILE004": http.StatusBadRequest,
	"FILE005": http.StatusBadRequest,
	"FILE006": http.StatusBadRequest,
	"FILE007": http.StatusUnsupportedMediaType,
	"REQ001":  http.StatusBadRequest,
	"TBL001":  http.StatusNotFound,
	"IMP001":  http.StatusUnprocessableEntity,
	"DB001":   http.StatusConflict,
	"DB003":   http.StatusConflict,
	"DB004":   http.StatusServiceUnavailable,
	"DB006":   http.StatusGatewayTimeout,
	"DB008":   http.StatusServiceUnavailable,
	"UPL002":  http.StatusServiceUnavailable,
	"UPL004":  http.StatusRequestTimeout,
}

// statusFor returns the HTTP status for a mapped message.
func statusFor(msg report.UserMessage) int {
	if status, ok := codeStatus[msg.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := report.MapError(err)
	status := statusFor(msg)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"error", err.Error(),
			"code", msg.Code,
		)
	} else {
		logger.Warn("request rejected",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"error", err.Error(),
			"code", msg.Code,
		)
	}

	if msg.Code == "UPL002" {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		s.render(w, r, status, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
	case wantsHTML(r):
		s.render(w, r, status, templates.Page("Error", templates.ErrorAlert(msg.Message, msg.Action, msg.Code)))
	default:
		writeJSON(w, r, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsHTML reports whether the client prefers an HTML page over JSON.
// API clients that ask for nothing in particular get JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/html")
}

// wantsCSV reports whether the client asked for the cell error report as CSV.
func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("report") == "csv" || strings.Contains(r.Header.Get("Accept"), "text/csv")
}
