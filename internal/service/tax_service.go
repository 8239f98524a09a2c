package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"income-tax/internal/domain"
	"income-tax/internal/repository"
	"income-tax/internal/tax"
)

// TaxService owns the rate table for the process and answers calculations against it.
type TaxService interface {
	Bootstrap(ctx context.Context)
	Compute(ctx context.Context, rec domain.IncomeRecord) decimal.Decimal
	Explain(ctx context.Context, rec domain.IncomeRecord) tax.Breakdown
	Table(ctx context.Context) domain.RateTable
	ReplaceTable(ctx context.Context, table domain.RateTable, deriveQuickDeductions bool) (domain.RateTable, error)
}

type taxService struct {
	rates  repository.RateRepository
	logger *logrus.Logger

	mu    sync.RWMutex
	table domain.RateTable
}

func NewTaxService(rates repository.RateRepository, logger *logrus.Logger) TaxService {
	if logger == nil {
		logger = logrus.New()
	}
	return &taxService{
		rates:  rates,
		logger: logger,
	}
}

// Bootstrap loads the persisted table or materialises and saves the default one.
func (s *taxService) Bootstrap(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	brackets, err := s.rates.Load(ctx)
	if err == nil && len(brackets) > 0 {
		s.table = domain.RateTable(brackets)
		if verr := s.table.Validate(); verr != nil {
			// kept as loaded; unmatched incomes compute to zero
			s.logger.Warnf("persisted rate table is malformed: %v", verr)
		}
		s.logger.Infof("loaded rate table with %d brackets", len(s.table))
		return
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warnf("rate table unreadable, using defaults: %v", err)
	} else {
		s.logger.Info("no rate table stored, using defaults")
	}

	s.table = tax.DefaultRateTable()
	s.persistLocked(ctx)
}

func (s *taxService) Compute(ctx context.Context, rec domain.IncomeRecord) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tax.ComputeTax(rec, s.table)
}

func (s *taxService) Explain(ctx context.Context, rec domain.IncomeRecord) tax.Breakdown {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tax.Explain(rec, s.table)
}

func (s *taxService) Table(ctx context.Context) domain.RateTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

// ReplaceTable installs a validated table. With deriveQuickDeductions set the
// supplied quick deductions (except the first) are recomputed before validation.
func (s *taxService) ReplaceTable(ctx context.Context, table domain.RateTable, deriveQuickDeductions bool) (domain.RateTable, error) {
	next := table.Clone()
	if deriveQuickDeductions {
		derived, err := tax.DeriveQuickDeductions(next)
		if err != nil {
			return nil, err
		}
		next = derived
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = next
	s.persistLocked(ctx)
	return next.Clone(), nil
}

func (s *taxService) persistLocked(ctx context.Context) {
	if err := s.rates.Save(ctx, s.table.Clone()); err != nil {
		s.logger.Errorf("persist rate table: %v", err)
	}
}
