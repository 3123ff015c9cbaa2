package http

import (
	"context"
	"net/http"
	"strconv"

	"carteira/internal/core"
	applog "carteira/internal/log"
)

// handleOverview returns reconciled totals for an optional date range.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "startDate", "endDate")
	rng := q.DateRange("startDate", "endDate", false)
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.engine.Overview(ctx, userID(r), rng)
	})
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "startDate", "endDate")
	rng := q.DateRange("startDate", "endDate", false)
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.engine.ByCategory(ctx, userID(r), rng)
	})
}

// handleByCard sums card expenses, restricted to a calendar month when
// month=YYYY-MM is given.
func (s *Server) handleByCard(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "month")
	month := q.Month("month")
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.engine.ByCard(ctx, userID(r), month)
	})
}

func parseYearMonth(r *http.Request) (year, month int, err error) {
	q := NewQueryParser(r.URL.Query(), "year", "month")
	year = q.RequiredInt("year")
	month = q.RequiredInt("month")
	return year, month, q.Err()
}

func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.engine.Cashflow(ctx, userID(r), year, month)
	})
}

// handleCashflowChart renders the month's accumulated balance as a PNG.
func (s *Server) handleCashflowChart(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	days, err := s.engine.Cashflow(ctx, userID(r), year, month)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	ym, _ := core.NewYearMonth(year, month)
	png, err := RenderCashflowChart(ym, days)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	applog.FromContext(ctx).DebugContext(ctx, "Cashflow chart rendered",
		applog.FieldOperation, applog.OpAggregate,
		"month", ym.String(),
		"days", len(days),
		"bytes", len(png))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	if err := NewQueryParser(r.URL.Query()).Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	id := r.PathValue("id")
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.budgets.ProgressByID(ctx, userID(r), id)
	})
}

func (s *Server) handleAllBudgetsProgress(w http.ResponseWriter, r *http.Request) {
	if err := NewQueryParser(r.URL.Query()).Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.budgets.AllProgress(ctx, userID(r))
	})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	if err := NewQueryParser(r.URL.Query()).Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	id := r.PathValue("id")
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.engine.AccountBalance(ctx, userID(r), id)
	})
}

// handleCardInvoice builds the statement for month=YYYY-MM, defaulting to
// the current month.
func (s *Server) handleCardInvoice(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "month")
	month := q.Month("month")
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	if month == nil {
		now := s.now()
		month = &core.YearMonth{Year: now.Year(), Month: now.Month()}
	}
	id := r.PathValue("id")
	// the default month moves with the clock, so it is part of the key
	key := cacheKey(r) + "|month=" + month.String()
	s.cachedAs(w, r, key, func(ctx context.Context) (any, error) {
		return s.engine.Invoice(ctx, userID(r), id, *month)
	})
}
