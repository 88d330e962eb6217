// Package viewer is the thin read-only surface operators use to list
// machines, programs, and batches. It never writes; heavier list queries are
// cached in Redis with singleflight collapsing concurrent misses.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/paddymills/nestbridge/pkg/errors"
	"github.com/paddymills/nestbridge/pkg/metrics"
	pkgredis "github.com/paddymills/nestbridge/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "viewer:"

// ProgramSummary is one nesting program with its unexecuted repeat count.
type ProgramSummary struct {
	Program     string  `json:"program"`
	Repeats     int     `json:"repeats"`
	CuttingTime float64 `json:"cutting_time"`
}

// Batch is one material batch available for a sheet.
type Batch struct {
	Name      string `json:"name"`
	SheetName string `json:"sheet_name"`
	Material  string `json:"material"`
	Qty       int    `json:"qty"`
}

// ProgramDetail is the full view of one program.
type ProgramDetail struct {
	Program     string  `json:"program"`
	MachineName string  `json:"machine_name"`
	SheetName   string  `json:"sheet_name"`
	Repeats     int     `json:"repeats"`
	CuttingTime float64 `json:"cutting_time"`
}

// Catalog is the read-only query surface the viewer draws from.
type Catalog interface {
	Machines(ctx context.Context) ([]string, error)
	ProgramsForMachine(ctx context.Context, machine string) ([]ProgramSummary, error)
	Batches(ctx context.Context) ([]Batch, error)
	// Program returns one program's detail, or nil when unknown.
	Program(ctx context.Context, name string) (*ProgramDetail, error)
	// ProgramSheet returns the sheet a program is nested on, or "" when the
	// program is unknown.
	ProgramSheet(ctx context.Context, program string) (string, error)
}

// Service serves viewer queries with Redis caching for the list endpoints.
// cache may be nil, in which case every call goes to the catalog.
type Service struct {
	catalog Catalog
	cache   *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a viewer Service. cache and m may be nil.
func NewService(catalog Catalog, cache *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		catalog: catalog,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "viewer"),
	}
}

// Machines lists the distinct machine names known to Target.
func (s *Service) Machines(ctx context.Context) ([]string, error) {
	return cached(ctx, s, "machines", func() ([]string, error) {
		return s.catalog.Machines(ctx)
	})
}

// ProgramsForMachine lists programs with unexecuted repeats on one machine.
// Programs whose execution is already staged back to Source are excluded.
func (s *Service) ProgramsForMachine(ctx context.Context, machine string) ([]ProgramSummary, error) {
	if machine == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "machine is required")
	}
	return s.catalog.ProgramsForMachine(ctx, machine)
}

// Batches lists every batch, cached.
func (s *Service) Batches(ctx context.Context) ([]Batch, error) {
	return cached(ctx, s, "batches", func() ([]Batch, error) {
		return s.catalog.Batches(ctx)
	})
}

// Program returns the detail view of one program.
func (s *Service) Program(ctx context.Context, name string) (*ProgramDetail, error) {
	if name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "program is required")
	}
	detail, err := s.catalog.Program(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading program %s: %w", name, err)
	}
	if detail == nil {
		return nil, apperrors.Newf(apperrors.ErrProgramNotFound, http.StatusNotFound, "program %s", name)
	}
	return detail, nil
}

// BatchesForProgram lists the batches usable by one program: those on the
// sheet the program is nested on.
func (s *Service) BatchesForProgram(ctx context.Context, program string) ([]Batch, error) {
	sheet, err := s.catalog.ProgramSheet(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("resolving sheet for program %s: %w", program, err)
	}
	if sheet == "" {
		return nil, apperrors.Newf(apperrors.ErrProgramNotFound, http.StatusNotFound, "program %s", program)
	}

	all, err := s.Batches(ctx)
	if err != nil {
		return nil, err
	}
	var out []Batch
	for _, b := range all {
		if b.SheetName == sheet {
			out = append(out, b)
		}
	}
	return out, nil
}

// cached wraps a catalog call with Redis get/set and singleflight.
func cached[T any](ctx context.Context, s *Service, name string, load func() (T, error)) (T, error) {
	var zero T
	if s.cache == nil {
		return load()
	}
	key := keyPrefix + name

	if data, err := s.cache.Get(ctx, key); err == nil {
		var out T
		if err := json.Unmarshal([]byte(data), &out); err == nil {
			if s.metrics != nil {
				s.metrics.ViewerCacheHitsTotal.Inc()
			}
			return out, nil
		}
		s.logger.Error("cache unmarshal failed", "key", key, "error", err)
	} else if !pkgredis.IsNilError(err) {
		s.logger.Error("cache get failed", "key", key, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ViewerCacheMissTotal.Inc()
	}

	val, err, _ := s.group.Do(key, func() (any, error) {
		out, err := load()
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.logger.Error("cache set failed", "key", key, "error", err)
			}
		}
		return out, nil
	})
	if err != nil {
		return zero, err
	}
	return val.(T), nil
}

// Invalidate drops every viewer cache key.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	deleted, err := s.cache.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating viewer cache: %w", err)
	}
	s.logger.Info("viewer cache invalidated", "keys_deleted", deleted)
	return nil
}
