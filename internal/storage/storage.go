package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/bdougie/pitchside/internal/models"
)

const batchSize = 10 // Number of results to batch write

// ResultsFile is the file name written inside each run directory.
const ResultsFile = "analysis_results.json"

// Storage defines the interface for storing caption results
type Storage interface {
	// AddResult adds a single caption result
	AddResult(ctx context.Context, result models.AnalysisResult) error

	// Flush ensures all pending results are saved
	Flush() error
}

// fileStorage batches results and appends them to one JSON file per run.
type fileStorage struct {
	results   []models.AnalysisResult
	mu        sync.Mutex
	outputDir string
	logger    *slog.Logger
}

// NewFileStorage stores results under outputDir/<run id>/analysis_results.json.
func NewFileStorage(outputDir string, logger *slog.Logger) Storage {
	return &fileStorage{
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *fileStorage) AddResult(ctx context.Context, result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results) >= batchSize {
		if err := s.flush(); err != nil {
			s.logger.Error("failed to flush results", slog.Any("error", err))
			return err
		}
	}
	return nil
}

// Flush writes all pending results to disk
func (s *fileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *fileStorage) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	byRun := make(map[uuid.UUID][]models.AnalysisResult)
	var order []uuid.UUID
	for _, r := range s.results {
		if _, seen := byRun[r.RunID]; !seen {
			order = append(order, r.RunID)
		}
		byRun[r.RunID] = append(byRun[r.RunID], r)
	}

	for _, id := range order {
		if err := s.appendRun(ResultsPath(s.outputDir, id), byRun[id]); err != nil {
			return err
		}
	}

	s.results = nil
	return nil
}

func (s *fileStorage) appendRun(path string, results []models.AnalysisResult) error {
	var existing []models.AnalysisResult
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing results: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read results file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for results: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(append(existing, results...))
}

// ResultsPath is where the results of run id are written under outputDir.
func ResultsPath(outputDir string, id uuid.UUID) string {
	return filepath.Join(outputDir, id.String(), ResultsFile)
}

// LoadResults reads back a results file written by the file storage.
func LoadResults(path string) ([]models.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var results []models.AnalysisResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return results, nil
}

// Nop discards every result. It is used when no storage is configured.
type Nop struct{}

func (Nop) AddResult(context.Context, models.AnalysisResult) error { return nil }
func (Nop) Flush() error                                           { return nil }

// Multi fans results out to every store and joins their errors.
func Multi(stores ...Storage) Storage {
	switch len(stores) {
	case 0:
		return Nop{}
	case 1:
		return stores[0]
	}
	return multi(stores)
}

type multi []Storage

func (m multi) AddResult(ctx context.Context, result models.AnalysisResult) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.AddResult(ctx, result))
	}
	return errors.Join(errs...)
}

func (m multi) Flush() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Flush())
	}
	return errors.Join(errs...)
}
