package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetconv/internal/config"
	"github.com/JonMunkholm/sheetconv/internal/metrics"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/service"
	"github.com/JonMunkholm/sheetconv/internal/store"
)

const peopleYAML = `
key: people
label: People
group: HR
table: people
columns:
  - column: NAME
    prop: name
    type: text
    required: true
  - column: AGE
    prop: age
    type: integer
`

type fakeCopier struct {
	rows int64
}

func (f *fakeCopier) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	for src.Next() {
		f.rows++
	}
	return f.rows, src.Err()
}

type testEnv struct {
	server *Server
	db     *fakeCopier
}

// newTestServer builds a server over the people schema. mutate may adjust
// the default configuration; withDB attaches a fake database.
func newTestServer(t *testing.T, withDB bool, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	def, err := schema.Parse([]byte(peopleYAML))
	require.NoError(t, err)
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(def))

	env := &testEnv{}
	var db store.CopyFromer
	if withDB {
		env.db = &fakeCopier{}
		db = env.db
	}

	m := metrics.New(prometheus.NewRegistry())
	svc := service.New(reg, store.NewSink(db, nil), m, service.Options{
		MaxBytes:      cfg.Convert.MaxFileSize,
		MaxConcurrent: cfg.Convert.MaxConcurrent,
		MaxWait:       cfg.Convert.MaxWait,
	})

	env.server = NewServer(svc, m, cfg)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Schemas)
	assert.Equal(t, 4, body.Limiter.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListSchemas(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []SchemaSummary{{
		Key:     "people",
		Label:   "People",
		Group:   "HR",
		Table:   "people",
		Headers: []string{"NAME", "AGE"},
	}}, decode[[]SchemaSummary](t, rec))
}

func TestGetSchema(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/schemas/people", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[schema.Definition](t, rec)
	assert.Len(t, def.Columns, 2)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/schemas/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TBL001", decode[ErrorResponse](t, rec).Code)
}

func TestDownloadTemplate(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/template/people", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "people_template.csv")
	assert.Equal(t, "NAME,AGE\n", rec.Body.String())
}

func TestConvert_RawBody(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert/people?format=csv", strings.NewReader("NAME,AGE\nann,31\nbob,x\n"))
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[ConvertResponse](t, rec)
	assert.Equal(t, "people", body.Schema)
	assert.Equal(t, 2, body.Records)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "ann", body.Rows[0]["name"])
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 2, body.Errors[0].Row)
	assert.Equal(t, "AGE", body.Errors[0].Column)
	assert.Equal(t, "VAL002", body.Errors[0].Code)
	assert.Equal(t, map[string]int{"VAL002": 1}, body.Summary)
}

func TestConvert_Multipart(t *testing.T) {
	env := newTestServer(t, false, nil)

	body, contentType := multipartBody(t, "people.csv", []byte("NAME,ann,bob\nAGE,31,40\n"), map[string]string{"columns": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/people", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ConvertResponse](t, rec)
	assert.Equal(t, "people.csv", resp.Filename)
	assert.Equal(t, 2, resp.Records)
	assert.Empty(t, resp.Errors)
}

func TestConvert_XLSXSheetSelection(t *testing.T) {
	env := newTestServer(t, false, nil)

	f := excelize.NewFile()
	_, err := f.NewSheet("People")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("People", "A1", &[]any{"NAME", "AGE"}))
	require.NoError(t, f.SetSheetRow("People", "A2", &[]any{"ann", 31}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	body, contentType := multipartBody(t, "people.xlsx", buf.Bytes(), map[string]string{"sheet": "People"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert/people", body)
	req.Header.Set("Content-Type", contentType)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ConvertResponse](t, rec)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "ann", resp.Rows[0]["name"])

	body, contentType = multipartBody(t, "people.xlsx", buf.Bytes(), nil)
	req = httptest.NewRequest(http.MethodPost, "/api/sheets", body)
	req.Header.Set("Content-Type", contentType)

	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string][]string{"sheets": {"Sheet1", "People"}}, decode[map[string][]string](t, rec))
}

func TestConvert_HTMLReport(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert/people?format=csv", strings.NewReader("NAME,AGE\nann,<b>\n"))
	req.Header.Set("Accept", "text/html")

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	html := rec.Body.String()
	assert.Contains(t, html, "1 records, 1 cell errors")
	assert.Contains(t, html, "&lt;b&gt;")
	assert.NotContains(t, html, "<b>")
	assert.Contains(t, html, "VAL002")
}

func TestConvert_CSVErrorReport(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert/people?format=csv&report=csv", strings.NewReader("NAME,AGE\n,31\n"))
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,column,value,error,code,message,action", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,NAME,,required,VAL003,"), lines[1])
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		mutate     func(*config.Config)
		wantStatus int
		wantCode   string
	}{
		{name: "unknown schema", target: "/api/convert/nope?format=csv", body: "A\n1\n", wantStatus: http.StatusNotFound, wantCode: "TBL001"},
		{name: "unknown format", target: "/api/convert/people", body: "A\n1\n", wantStatus: http.StatusUnsupportedMediaType, wantCode: "FILE007"},
		{name: "empty body", target: "/api/convert/people?format=csv", body: "", wantStatus: http.StatusBadRequest, wantCode: "FILE005"},
		{name: "bad columns param", target: "/api/convert/people?format=csv&columns=maybe", body: "A\n1\n", wantStatus: http.StatusBadRequest, wantCode: "REQ001"},
		{name: "bad workbook", target: "/api/convert/people?format=xlsx", body: "not a zip", wantStatus: http.StatusBadRequest, wantCode: "FILE002"},
		{
			name:       "too large",
			target:     "/api/convert/people?format=csv",
			body:       strings.Repeat("x", 64),
			mutate:     func(c *config.Config) { c.Convert.MaxFileSize = 16 },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(t, false, tt.mutate)

			rec := env.do(httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestConvert_MultipartWithoutFile(t *testing.T) {
	env := newTestServer(t, false, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sheet", "1"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/convert/people", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code)
}

func TestImport(t *testing.T) {
	env := newTestServer(t, true, nil)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/import/people?format=csv", strings.NewReader("NAME,AGE\nann,31\nbob,40\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[ConvertResponse](t, rec)
	assert.Equal(t, int64(2), body.Imported)
	assert.Empty(t, body.Rows)
	assert.Equal(t, int64(2), env.db.rows)
}

func TestImport_BlockedByCellErrors(t *testing.T) {
	env := newTestServer(t, true, nil)
	csv := "NAME,AGE\nann,31\nbob,old\n"

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/import/people?format=csv", strings.NewReader(csv)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	blocked := decode[importBlockedResponse](t, rec)
	assert.Equal(t, "IMP001", blocked.Code)
	require.Len(t, blocked.Errors, 1)
	assert.Equal(t, "AGE", blocked.Errors[0].Column)
	assert.Zero(t, env.db.rows)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/import/people?format=csv&partial=true", strings.NewReader(csv)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decode[ConvertResponse](t, rec).Imported)
}

func TestImport_NoDatabase(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/import/people?format=csv", strings.NewReader("NAME\nann\n")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DB008", decode[ErrorResponse](t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestServer(t, false, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	// Health and metrics stay open.
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestIndexPage(t *testing.T) {
	env := newTestServer(t, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "<h2>HR</h2>")
	assert.Contains(t, html, `action="/convert/people"`)
	assert.Contains(t, html, `href="/template/people"`)
	assert.Contains(t, html, "NAME, AGE")
	assert.NotContains(t, html, "Uploads from this page are off")
}

func TestBrowserRoutes(t *testing.T) {
	env := newTestServer(t, false, nil)

	body, contentType := multipartBody(t, "people.csv", []byte("NAME,AGE\nann,31\n"), nil)
	req := httptest.NewRequest(http.MethodPost, "/convert/people", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/html")

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "people.csv: 1 records, 0 cell errors")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/template/people", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NAME,AGE\n", rec.Body.String())
}

func TestBrowserRoutes_APIKeyRequired(t *testing.T) {
	env := newTestServer(t, false, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Uploads from this page are off")
	assert.NotContains(t, html, "<form")
	assert.Contains(t, html, `href="/template/people"`)

	req := httptest.NewRequest(http.MethodPost, "/convert/people?format=csv", strings.NewReader("NAME\nann\n"))
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/template/people", nil)).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, false, nil)

	env.do(httptest.NewRequest(http.MethodPost, "/api/convert/people?format=csv", strings.NewReader("NAME\nann\n")))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	text := rec.Body.String()
	assert.Contains(t, text, `sheetconv_conversions_total{schema="people",status="ok"} 1`)
	assert.Contains(t, text, `route="/api/convert/{schemaKey}"`)
}

func TestErrorPage_HTML(t *testing.T) {
	env := newTestServer(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/schemas/nope", nil)
	req.Header.Set("Accept", "text/html")
	rec := env.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Code: TBL001")

	req = httptest.NewRequest(http.MethodGet, "/api/schemas/nope", nil)
	req.Header.Set("HX-Request", "true")
	rec = env.do(req)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<div class="alert alert-error"`))
}
