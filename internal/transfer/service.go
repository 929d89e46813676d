// Package transfer exports the catalog to CSV and replaces it from CSV.
package transfer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/internal/maintenance"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
	"github.com/angelmondragon/partsdesk-backend/pkg/metrics"
	"gorm.io/gorm"
)

// Service moves the whole catalog in and out as CSV.
type Service interface {
	// Export writes one row per variant and returns the number of rows written.
	Export(ctx context.Context, w io.Writer) (int, error)
	// Import wipes the catalog, stock ledger and sales history, then applies
	// the rows of r. Bad rows are reported in the result, never fatal.
	Import(ctx context.Context, r io.Reader) (*ImportResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ImportResult reports an import run.
type ImportResult struct {
	Applied  int           `json:"updated_count"`
	Errors   []string      `json:"errors"`
	Duration time.Duration `json:"-"`
}

// Err returns a PartialImportFailure carrying the line errors, or nil when
// every row applied.
func (r *ImportResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePartialImportFailure,
		fmt.Sprintf("%d line(s) skipped", len(r.Errors))).
		WithDetails(map[string]any{
			"applied": r.Applied,
			"errors":  r.Errors,
		})
}

// ServiceParams wires the transfer service.
type ServiceParams struct {
	DB      txRunner
	Repo    *Repository
	Ledger  ledger.Service
	Guard   *maintenance.ImportGuard
	Window  *maintenance.Window
	Metrics *metrics.ImportMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	tx      txRunner
	repo    *Repository
	ledger  ledger.Service
	guard   *maintenance.ImportGuard
	window  *maintenance.Window
	metrics *metrics.ImportMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("transfer repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("import guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:      params.DB,
		repo:    params.Repo,
		ledger:  params.Ledger,
		guard:   params.Guard,
		window:  params.Window,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) Export(ctx context.Context, w io.Writer) (int, error) {
	out := bufio.NewWriter(w)
	if _, err := out.WriteString(strings.Join(exportHeader, ",") + "\n"); err != nil {
		return 0, err
	}
	count := 0
	err := s.repo.ExportRows(ctx, func(row *exportRow) error {
		count++
		return writeQuoted(out, row.record())
	})
	if err != nil {
		return count, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: export catalog")
	}
	return count, out.Flush()
}

// writeQuoted writes one record with every field quoted.
func writeQuoted(w *bufio.Writer, record []string) error {
	for i, field := range record {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func (s *service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	release, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "CSV is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read CSV header")
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	err = s.window.Exclusive(func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Wipe(ctx)
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: wipe catalog")
	}
	s.logg.Warn(ctx, "catalog wiped for import")

	result := &ImportResult{Errors: []string{}}
	cache := newNameCache()
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, fmt.Sprintf("Line %d: %v", parseErr.StartLine, parseErr.Err))
				continue
			}
			return result, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read CSV")
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}

		row, err := parseRow(cols, record)
		if err == nil {
			err = s.applyRow(ctx, cache, row)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Line %d: %s", line, lineMessage(err)))
			continue
		}
		result.Applied++
	}

	result.Duration = s.now().Sub(started)
	s.metrics.ObserveRun(result.Duration, result.Applied, len(result.Errors))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"applied":     result.Applied,
		"skipped":     len(result.Errors),
		"duration_ms": result.Duration.Milliseconds(),
	})
	s.logg.Info(logCtx, "catalog import finished")
	return result, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func lineMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

// applyRow writes one row in its own transaction. Names created inside the
// transaction reach the cache only after it commits.
func (s *service) applyRow(ctx context.Context, cache *nameCache, row importRow) error {
	pending := cache.begin()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return (&rowWriter{
			repo:   s.repo.WithTx(tx),
			ledger: s.ledger.WithTx(tx),
			names:  pending,
		}).write(ctx, row)
	})
	if err != nil {
		return err
	}
	cache.commit(pending)
	return nil
}
