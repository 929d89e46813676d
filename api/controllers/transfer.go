package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/angelmondragon/partsdesk-backend/api/responses"
	"github.com/angelmondragon/partsdesk-backend/internal/transfer"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

const importFormField = "file"

// CatalogExport streams the catalog as a CSV attachment.
func CatalogExport(svc transfer.Service, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		filename := fmt.Sprintf("catalog-%s.csv", now().UTC().Format("20060102-150405"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		rows, err := svc.Export(r.Context(), w)
		if err != nil {
			// Headers are gone once rows were written; only log then.
			if rows == 0 {
				w.Header().Del("Content-Disposition")
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(r.Context(), "catalog export aborted mid-stream", err)
			}
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "rows", rows), "catalog.exported")
		}
	}
}

// CatalogImport replaces the catalog from an uploaded CSV. The file may be
// the raw request body or a multipart field named "file". Skipped lines are
// reported in the 200 response.
func CatalogImport(svc transfer.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		body, closeBody, err := importSource(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer closeBody()

		result, err := svc.Import(r.Context(), body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = pkgerrors.New(pkgerrors.CodeValidation, "upload too large").
					WithDetails(map[string]any{"max_bytes": tooLarge.Limit})
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if partial := result.Err(); partial != nil && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "skipped", len(result.Errors)), "catalog.import_partial")
		}
		responses.WriteSuccess(w, result)
	}
}

func importSource(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "missing file field").
				WithDetails(map[string]any{"field": importFormField})
		}
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
		}
		if part.FormName() == importFormField {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}
