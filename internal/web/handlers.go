package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/logging"
	"github.com/JonMunkholm/sheetconv/internal/report"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/source"
	"github.com/JonMunkholm/sheetconv/internal/web/templates"
)

const (
	// multipartMemory is the part of a multipart form kept in memory; the rest spills to disk.
	multipartMemory = 8 << 20

	// multipartOverhead allows for form fields and part headers on top of the file itself.
	multipartOverhead = 1 << 20
)

// SchemaSummary is the listing form of a definition.
type SchemaSummary struct {
	Key            string   `json:"key"`
	Label          string   `json:"label"`
	Group          string   `json:"group"`
	Table          string   `json:"table,omitempty"`
	ColumnOriented bool     `json:"columnOriented,omitempty"`
	Headers        []string `json:"headers"`
}

// ConvertResponse is the JSON body of a conversion or import.
type ConvertResponse struct {
	Schema     string               `json:"schema"`
	Filename   string               `json:"filename,omitempty"`
	Records    int                  `json:"records"`
	Rows       []core.Record        `json:"rows,omitempty"`
	Errors     []report.CellMessage `json:"errors"`
	Summary    map[string]int       `json:"summary,omitempty"`
	Imported   int64                `json:"imported,omitempty"`
	DurationMS int64                `json:"duration_ms"`
}

// importBlockedResponse is returned when cell errors stop an import.
type importBlockedResponse struct {
	ErrorResponse
	Errors  []report.CellMessage `json:"errors"`
	Summary map[string]int       `json:"summary"`
}

// handleIndex renders the schema list with an upload form per schema.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.Page("Sheet conversion", templates.Index(s.service.Schemas(), s.browserUploads())))
}

// handleListSchemas returns all registered schemas, sorted by group then key.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Schemas()
	out := make([]SchemaSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summarize(d))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func summarize(d schema.Definition) SchemaSummary {
	return SchemaSummary{
		Key:            d.Key,
		Label:          d.Label,
		Group:          d.Group,
		Table:          d.Table,
		ColumnOriented: d.ColumnOriented,
		Headers:        d.Headers(),
	}
}

// handleGetSchema returns one full definition.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Schema(chi.URLParam(r, "schemaKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, def)
}

// handleDownloadTemplate returns an empty CSV laid out for a schema: one
// header row, or one header per row for column-oriented schemas.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Schema(chi.URLParam(r, "schemaKey"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, def.Key))

	cw := csv.NewWriter(w)
	if def.ColumnOriented {
		for _, h := range def.Headers() {
			_ = cw.Write([]string{h})
		}
	} else {
		_ = cw.Write(def.Headers())
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("template write error", "error", err)
	}
}

// handleListSheets returns the sheet names of an uploaded workbook.
func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer up.cleanup()

	sheets, err := source.SheetNames(io.LimitReader(up.req.Body, s.cfg.Convert.MaxFileSize))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"sheets": sheets})
}

// handleConvert converts an uploaded file against a schema.
//
// The file is the multipart part "file", or the raw request body. Options come
// from query or form parameters: sheet, format, columns (orientation override)
// and filename (raw bodies only). Cell errors do not fail the request.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer up.cleanup()

	out, err := s.service.Convert(r.Context(), up.req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondOutcome(w, r, up.req.Filename, out, true)
}

// handleImport converts an uploaded file and copies the records into the
// schema's table. With cell errors nothing is imported unless partial=true.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer up.cleanup()

	partial, err := boolParam(r, "partial")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	up.req.AllowPartial = partial != nil && *partial

	out, err := s.service.Import(r.Context(), up.req)
	if errors.Is(err, service.ErrHasErrors) && out != nil {
		s.respondBlocked(w, r, up.req.Filename, out, err)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondOutcome(w, r, up.req.Filename, out, false)
}

// respondOutcome writes a successful outcome as CSV error report, HTML or JSON.
func (s *Server) respondOutcome(w http.ResponseWriter, r *http.Request, filename string, out *service.Outcome, withRows bool) {
	cells := report.DescribeAll(out.Result.Errors)

	switch {
	case wantsCSV(r):
		writeErrorsCSV(w, r, out.Definition.Key, cells)
	case wantsHTML(r):
		s.render(w, r, http.StatusOK, templates.Page(out.Definition.Label, templates.Report(reportView(filename, out, cells))))
	default:
		resp := ConvertResponse{
			Schema:     out.Definition.Key,
			Filename:   filename,
			Records:    len(out.Result.Rows),
			Errors:     cells,
			Summary:    report.Summary(out.Result.Errors),
			Imported:   out.Imported,
			DurationMS: out.Duration.Milliseconds(),
		}
		if withRows {
			resp.Rows = out.Result.Rows
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}

// respondBlocked reports an import stopped by cell errors, listing the cells.
func (s *Server) respondBlocked(w http.ResponseWriter, r *http.Request, filename string, out *service.Outcome, err error) {
	msg := report.MapError(err)
	cells := report.DescribeAll(out.Result.Errors)

	logging.FromContext(r.Context()).Warn("import blocked",
		"schema", out.Definition.Key,
		"errors", len(cells),
	)

	if wantsHTML(r) {
		page := templates.Page(out.Definition.Label, templates.Stack(
			templates.ErrorAlert(msg.Message, msg.Action, msg.Code),
			templates.Report(reportView(filename, out, cells)),
		))
		s.render(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	writeJSON(w, r, http.StatusUnprocessableEntity, importBlockedResponse{
		ErrorResponse: ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code},
		Errors:        cells,
		Summary:       report.Summary(out.Result.Errors),
	})
}

func reportView(filename string, out *service.Outcome, cells []report.CellMessage) templates.ReportView {
	return templates.ReportView{
		Definition: out.Definition,
		Filename:   filename,
		Records:    out.Result.Rows,
		Errors:     cells,
		Summary:    report.Summary(out.Result.Errors),
		Imported:   out.Imported,
		Duration:   out.Duration,
	}
}

// writeErrorsCSV exports the cell errors so users can fix them in a spreadsheet.
func writeErrorsCSV(w http.ResponseWriter, r *http.Request, key string, cells []report.CellMessage) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_errors.csv"`, key))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"row", "column", "value", "error", "code", "message", "action"})
	for _, c := range cells {
		_ = cw.Write([]string{
			strconv.Itoa(c.Row),
			c.Column,
			templates.FormatValue(c.Value),
			c.Reason,
			c.Code,
			c.Message,
			c.Action,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.FromContext(r.Context()).Error("error report write error", "error", err)
	}
}

// upload is a parsed upload request with its cleanup.
type upload struct {
	req  service.Request
	form *multipart.Form
	file multipart.File
}

func (u *upload) cleanup() {
	if u.file != nil {
		u.file.Close()
	}
	if u.form != nil {
		_ = u.form.RemoveAll()
	}
}

// readUpload builds a service request from a multipart upload or a raw body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	up := &upload{req: service.Request{Schema: chi.URLParam(r, "schemaKey")}}

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Convert.MaxFileSize+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: exceeds %d bytes", source.ErrTooLarge, s.cfg.Convert.MaxFileSize)
			}
			return nil, fmt.Errorf("%w: %v", errNoFile, err)
		}
		up.form = r.MultipartForm

		file, header, err := r.FormFile("file")
		if err != nil {
			up.cleanup()
			return nil, errNoFile
		}
		up.file = file
		up.req.Body = file
		up.req.Filename = header.Filename
		up.req.ContentType = header.Header.Get("Content-Type")
	} else {
		up.req.Body = r.Body
		up.req.ContentType = r.Header.Get("Content-Type")
		up.req.Filename = r.URL.Query().Get("filename")
	}

	up.req.Sheet = param(r, "sheet")
	up.req.Format = param(r, "format")

	columns, err := boolParam(r, "columns")
	if err != nil {
		up.cleanup()
		return nil, err
	}
	up.req.ColumnOriented = columns

	return up, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// param reads a query parameter, falling back to a parsed multipart field.
func param(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.MultipartForm != nil {
		if vs := r.MultipartForm.Value[name]; len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// boolParam reads an optional boolean parameter. It returns nil when absent.
func boolParam(r *http.Request, name string) (*bool, error) {
	v := param(r, name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid parameter %q: %q", name, v)
	}
	return &b, nil
}
