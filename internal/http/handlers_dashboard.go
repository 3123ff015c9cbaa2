package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	applog "carteira/internal/log"
)

// overviewView is the data of the dashboard overview partial.
type overviewView struct {
	Month    string
	Overview core.Overview
	Budgets  []core.BudgetProgress
	Cashflow []core.CashflowDay
	Cards    []core.CardSpend
}

// handleIndex renders the dashboard shell. Data is loaded by the page with
// the caller's token through /ui/overview.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	data := struct{ Month string }{
		Month: core.YearMonth{Year: now.Year(), Month: now.Month()}.String(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index_page", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed", applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// handleOverviewPartial renders the month summary, budgets and cashflow as
// an HTML fragment.
func (s *Server) handleOverviewPartial(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "month")
	month := q.Month("month")
	if err := q.Err(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if month == nil {
		now := s.now()
		month = &core.YearMonth{Year: now.Year(), Month: now.Month()}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	uid := userID(r)
	rng := month.Range()
	view := overviewView{Month: month.String()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view.Overview, err = s.engine.Overview(gctx, uid, rng)
		return err
	})
	g.Go(func() error {
		var err error
		view.Cashflow, err = s.engine.Cashflow(gctx, uid, month.Year, int(month.Month))
		return err
	})
	g.Go(func() error {
		var err error
		view.Cards, err = s.engine.ByCard(gctx, uid, month)
		return err
	})
	g.Go(func() error {
		var err error
		view.Budgets, err = s.budgets.AllProgress(gctx, uid)
		return err
	})
	if err := g.Wait(); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Overview partial failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpAggregate)
		http.Error(w, "could not load overview", StatusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "overview_partial", view); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Overview template execution failed", applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
