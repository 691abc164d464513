// Package service runs conversions end to end: it resolves the schema,
// reads the uploaded file, converts it and optionally imports the records.
// The HTTP server and the CLI both go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetconv/internal/core"
	"github.com/JonMunkholm/sheetconv/internal/logging"
	"github.com/JonMunkholm/sheetconv/internal/metrics"
	"github.com/JonMunkholm/sheetconv/internal/schema"
	"github.com/JonMunkholm/sheetconv/internal/source"
	"github.com/JonMunkholm/sheetconv/internal/store"
)

// ErrHasErrors blocks an import whose conversion reported cell errors.
var ErrHasErrors = errors.New("conversion has cell errors")

// Options holds the service-wide conversion settings.
type Options struct {
	MaxBytes      int64
	DefaultSheet  string
	Date1904      bool
	Timeout       time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
}

// Request describes one uploaded file.
type Request struct {
	Schema      string
	Body        io.Reader
	Filename    string
	ContentType string

	// Format overrides detection from Filename and ContentType.
	Format string

	// Sheet selects an XLSX sheet. Empty uses the default sheet.
	Sheet string

	// ColumnOriented overrides the definition's orientation when set.
	ColumnOriented *bool

	// AllowPartial imports the valid records even when some cells failed.
	AllowPartial bool
}

// Outcome is the result of a conversion or import.
type Outcome struct {
	Definition schema.Definition
	Result     core.Result
	Imported   int64
	Duration   time.Duration
}

// Service converts and imports files against registered schemas.
type Service struct {
	registry *schema.Registry
	sink     *store.Sink
	metrics  *metrics.Collector
	limiter  *Limiter
	opts     Options
}

// New creates a Service. sink and m may be nil.
// Conversion logs go to the context logger, see logging.FromContext.
func New(registry *schema.Registry, sink *store.Sink, m *metrics.Collector, opts Options) *Service {
	if sink == nil {
		sink = store.NewSink(nil, slog.Default())
	}
	return &Service{
		registry: registry,
		sink:     sink,
		metrics:  m,
		limiter:  NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:     opts,
	}
}

// Schemas lists the registered definitions.
func (s *Service) Schemas() []schema.Definition {
	return s.registry.All()
}

// Schema returns one definition, or an error wrapping schema.ErrNotFound.
func (s *Service) Schema(key string) (schema.Definition, error) {
	return s.registry.Lookup(key)
}

// SchemaCount is the number of registered definitions.
func (s *Service) SchemaCount() int {
	return s.registry.Count()
}

// Limiter exposes the concurrency limiter for health checks and shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Convert reads and converts one file. Cell errors are part of the result;
// the returned error is reserved for failures that stop the conversion.
func (s *Service) Convert(ctx context.Context, req Request) (*Outcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	return s.convert(ctx, req)
}

func (s *Service) convert(ctx context.Context, req Request) (*Outcome, error) {
	def, err := s.registry.Lookup(req.Schema)
	if err != nil {
		return nil, err
	}

	logger := logging.WithFields(ctx, slog.String("schema", def.Key))

	start := time.Now()
	result, err := s.read(ctx, def, req, logger)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.Observe(def.Key, result, err, elapsed)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("file converted",
		slog.String("file", req.Filename),
		slog.Int("records", len(result.Rows)),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("duration", elapsed),
	)

	return &Outcome{Definition: def, Result: result, Duration: elapsed}, nil
}

func (s *Service) read(ctx context.Context, def schema.Definition, req Request, logger *slog.Logger) (core.Result, error) {
	format, err := s.format(req)
	if err != nil {
		return core.Result{}, err
	}

	sheet := req.Sheet
	if sheet == "" {
		sheet = s.opts.DefaultSheet
	}

	grid, err := source.Read(req.Body, format, source.Options{Sheet: sheet, MaxBytes: s.opts.MaxBytes})
	if err != nil {
		return core.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Result{}, err
	}

	columnOriented := def.ColumnOriented
	if req.ColumnOriented != nil {
		columnOriented = *req.ColumnOriented
	}

	return core.Convert(grid, def.Schema(), &core.Options{
		ColumnOriented: columnOriented,
		Date1904:       s.opts.Date1904,
		Logger:         logger,
	})
}

func (s *Service) format(req Request) (source.Format, error) {
	if req.Format != "" {
		return source.ParseFormat(req.Format)
	}
	return source.DetectFormat(req.Filename, req.ContentType)
}

// Import converts a file and copies its records into the definition's table.
// A conversion with cell errors is not imported unless AllowPartial is set.
func (s *Service) Import(ctx context.Context, req Request) (*Outcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	out, err := s.convert(ctx, req)
	if err != nil {
		return nil, err
	}

	if n := len(out.Result.Errors); n > 0 && !req.AllowPartial {
		return out, fmt.Errorf("%w: %d cell errors", ErrHasErrors, n)
	}

	n, err := s.sink.Write(ctx, out.Definition, out.Result.Rows)
	if err != nil {
		return out, err
	}
	out.Imported = n

	if s.metrics != nil {
		s.metrics.ObserveImport(out.Definition.Key, n)
	}
	return out, nil
}
