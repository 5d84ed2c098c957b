package api

import (
	"net/http"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/auth"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

// customerOnly restricts h to sessions held by customers.
func (s *server) customerOnly(h handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		sess, ok := auth.SessionFromContext(r.Context())
		if !ok || sess.Role != auth.RoleCustomer {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return nil
		}
		return h(w, r)
	}
}

func customerID(r *http.Request) string {
	sess, _ := auth.SessionFromContext(r.Context())
	return sess.UserID
}

func (s *server) handleCustomer(w http.ResponseWriter, r *http.Request) error {
	c, err := s.Customers.Get(r.Context(), customerID(r))
	if err != nil {
		return err
	}
	summary, err := s.Queries.CustomerSummary(r.Context(), c)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, summary)
	return nil
}

func (s *server) handleUnpaid(w http.ResponseWriter, r *http.Request) error {
	bills, err := s.Queries.UnpaidBills(r.Context(), customerID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(bills))
	return nil
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) error {
	bills, err := s.Queries.BillHistory(r.Context(), customerID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(bills))
	return nil
}

func (s *server) handlePayments(w http.ResponseWriter, r *http.Request) error {
	payments, err := s.Queries.Payments(r.Context(), customerID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(payments))
	return nil
}

func (s *server) handlePredictions(w http.ResponseWriter, r *http.Request) error {
	preds, err := s.Store.ListPredictions(r.Context(), customerID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(preds))
	return nil
}

func (s *server) handleAdminCustomers(w http.ResponseWriter, r *http.Request) error {
	customers, err := s.Customers.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(customers))
	return nil
}

// handleAdminBills lists every bill, or one customer's with ?customer_id=.
// ?unpaid=true keeps only open bills.
func (s *server) handleAdminBills(w http.ResponseWriter, r *http.Request) error {
	f := storage.BillFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
		UnpaidOnly: r.URL.Query().Get("unpaid") == "true",
	}
	bills, err := s.Store.ListBills(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(bills))
	return nil
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
