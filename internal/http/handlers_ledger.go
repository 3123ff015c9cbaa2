package http

import (
	"net/http"

	"carteira/internal/ledger"
	applog "carteira/internal/log"
	"carteira/internal/services"
)

// noQuery rejects any query string on endpoints that take none.
func noQuery(w http.ResponseWriter, r *http.Request) bool {
	if err := NewQueryParser(r.URL.Query()).Err(); err != nil {
		WriteError(w, r, err)
		return false
	}
	return true
}

// writeResult writes v or maps err. Successful writes drop the caller's
// cached responses.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if r.Method != http.MethodGet {
		s.invalidate(r)
	}
	NewResponse().Status(status).Data(v).Write(w)
}

func (s *Server) writeDeleted(w http.ResponseWriter, r *http.Request, kind string, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.invalidate(r)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Entity deleted",
		applog.NewFields().WithOperation(applog.OpDelete).WithEntity(kind, r.PathValue("id")).ToSlice()...)
	NewResponse().Message(kind + " deleted").Write(w)
}

// Accounts

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Accounts.List(ctx, userID(r))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in services.AccountInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Accounts.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Accounts.Get(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in services.AccountInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Accounts.Update(ctx, userID(r), r.PathValue("id"), in)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "account", s.svc.Accounts.Delete(ctx, userID(r), r.PathValue("id")))
}

// Cards

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Cards.List(ctx, userID(r))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in services.CardInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Cards.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Cards.Get(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var in services.CardInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Cards.Update(ctx, userID(r), r.PathValue("id"), in)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "card", s.svc.Cards.Delete(ctx, userID(r), r.PathValue("id")))
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Categories.List(ctx, userID(r))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Categories.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Categories.Get(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in services.CategoryInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Categories.Update(ctx, userID(r), r.PathValue("id"), in)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "category", s.svc.Categories.Delete(ctx, userID(r), r.PathValue("id")))
}

// Transactions

// handleListTransactions returns matching transactions, newest first.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(),
		"startDate", "endDate", "categoryId", "cardId", "accountId", "flow", "reconciled")
	f := ledger.TransactionFilter{
		Range:      q.DateRange("startDate", "endDate", false),
		CategoryID: q.String("categoryId"),
		CardID:     q.String("cardId"),
		AccountID:  q.String("accountId"),
		Flow:       q.Flow("flow"),
		Reconciled: q.Bool("reconciled"),
	}
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Transactions.List(ctx, userID(r), f)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Transactions.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Transactions.Get(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in services.TransactionInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Transactions.Update(ctx, userID(r), r.PathValue("id"), in)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleReconcileTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Transactions.Reconcile(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "transaction", s.svc.Transactions.Delete(ctx, userID(r), r.PathValue("id")))
}

// Budgets

// handleListBudgets returns budgets ordered by year then month, newest first.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	q := NewQueryParser(r.URL.Query(), "period", "year", "month", "categoryId")
	f := ledger.BudgetFilter{
		Period:     q.Period("period"),
		Year:       q.Int("year"),
		Month:      q.Int("month"),
		CategoryID: q.String("categoryId"),
	}
	if err := q.Err(); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Budgets.List(ctx, userID(r), f)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in services.BudgetInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Budgets.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Budgets.Get(ctx, userID(r), r.PathValue("id"))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var in services.BudgetInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Budgets.Update(ctx, userID(r), r.PathValue("id"), in)
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "budget", s.svc.Budgets.Delete(ctx, userID(r), r.PathValue("id")))
}

// Recurring rules

func (s *Server) handleListRecurringRules(w http.ResponseWriter, r *http.Request) {
	if !noQuery(w, r) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Recurring.List(ctx, userID(r))
	s.writeResult(w, r, http.StatusOK, v, err)
}

func (s *Server) handleCreateRecurringRule(w http.ResponseWriter, r *http.Request) {
	var in services.RecurringRuleInput
	if err := DecodeJSON(w, r, &in); err != nil {
		WriteError(w, r, err)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	v, err := s.svc.Recurring.Create(ctx, userID(r), in)
	s.writeResult(w, r, http.StatusCreated, v, err)
}

func (s *Server) handleDeleteRecurringRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()
	s.writeDeleted(w, r, "recurring rule", s.svc.Recurring.Delete(ctx, userID(r), r.PathValue("id")))
}
