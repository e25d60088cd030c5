package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/salesops/internal/logging"
	"github.com/google/uuid"
)

// ServiceConfig holds the import settings the service needs.
type ServiceConfig struct {
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

// Service provides the import operations used by the web and CLI frontends.
// Every call builds a fresh Session; no producer or source state is cached
// between calls.
type Service struct {
	store    Store
	limiter  *ImportLimiter
	cfg      ServiceConfig
	archiver Archiver
	recorder RunRecorder
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithArchiver stores each imported file with a.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithRunRecorder records an audit row for each import.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg ServiceConfig, opts ...Option) *Service {
	s := &Service{
		store:   store,
		limiter: NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying persistence collaborator.
func (s *Service) Store() Store {
	return s.store
}

// LimiterStatus reports running and available import slots.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ValidateCSV runs the reconciliation pipeline without saving entries.
// Sources and historical producers can still be created as side effects.
func (s *Service) ValidateCSV(ctx context.Context, fileName string, data []byte) (*ValidationResult, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	var result ValidationResult
	err := s.limiter.Run(ctx, func(ctx context.Context) error {
		session, err := NewSession(ctx, s.store)
		if err != nil {
			return err
		}
		result = session.Validate(ctx, string(data))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("csv validated",
		"file", fileName,
		"format", result.Format,
		"rows", result.RowCount,
		"processed", len(result.ProcessedRows),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	return &result, nil
}

// ImportCSV validates data and, when the file reconciles cleanly, saves
// every processed entry. A report is returned even when validation fails,
// together with ErrValidationFailed.
func (s *Service) ImportCSV(ctx context.Context, fileName string, data []byte) (*ImportReport, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	report := &ImportReport{
		ImportID: uuid.New().String(),
		FileName: fileName,
	}
	logger := logging.WithFields(ctx, "import_id", report.ImportID, "file", fileName)

	err := s.limiter.Run(ctx, func(ctx context.Context) error {
		session, err := NewSession(ctx, s.store)
		if err != nil {
			return err
		}
		session.logger = logger

		result := session.Validate(ctx, string(data))
		report.Validation = &result
		if !result.IsValid || len(result.ProcessedRows) == 0 {
			return ErrValidationFailed
		}

		logger.Info("import started", "rows", len(result.ProcessedRows), "format", result.Format)
		summary := session.Execute(ctx, result.ProcessedRows)
		report.Summary = &summary
		return nil
	})
	if err != nil && !errors.Is(err, ErrValidationFailed) {
		return nil, err
	}

	report.ArchiveKey = s.archive(ctx, report.ImportID, fileName, data)
	report.Duration = time.Since(start)
	s.record(ctx, report, start)

	if err != nil {
		logger.Warn("import rejected", "errors", len(report.Validation.Errors))
		return report, err
	}

	logger.Info("import completed",
		"succeeded", report.Summary.Succeeded,
		"failed", report.Summary.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// IsCSVUpload gates uploads on file extension and declared content type.
// Browsers on Windows send CSV files as application/vnd.ms-excel.
func IsCSVUpload(fileName, contentType string) bool {
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return false
	}
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mediaType) {
	case "text/csv", "application/csv", "application/vnd.ms-excel", "text/plain":
		return true
	}
	return false
}

func (s *Service) checkSize(data []byte) error {
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return fmt.Errorf("file too large: %d bytes exceeds %d", len(data), s.cfg.MaxFileSize)
	}
	return nil
}

// archive stores the raw file. Failures are logged and ignored.
func (s *Service) archive(ctx context.Context, importID, fileName string, data []byte) string {
	if s.archiver == nil {
		return ""
	}
	key, err := s.archiver.Archive(ctx, importID, fileName, data)
	if err != nil {
		logging.FromContext(ctx).Warn("archive csv failed", "import_id", importID, "error", err)
		return ""
	}
	return key
}

// record writes the import audit row. Failures are logged and ignored.
func (s *Service) record(ctx context.Context, report *ImportReport, start time.Time) {
	if s.recorder == nil {
		return
	}

	run := ImportRun{
		ID:         report.ImportID,
		FileName:   report.FileName,
		ArchiveKey: report.ArchiveKey,
		IPAddress:  GetIPAddressFromContext(ctx),
		UserAgent:  GetUserAgentFromContext(ctx),
		StartedAt:  start,
		Duration:   report.Duration,
	}
	if v := report.Validation; v != nil {
		run.Format = v.Format
		run.RowCount = v.RowCount
		run.Processed = len(v.ProcessedRows)
		run.Errors = len(v.Errors)
		run.Warnings = len(v.Warnings)
	}
	if sum := report.Summary; sum != nil {
		run.Succeeded = sum.Succeeded
		run.Failed = sum.Failed
	}

	if err := s.recorder.RecordImportRun(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).Warn("record import run failed", "import_id", report.ImportID, "error", err)
	}
}
