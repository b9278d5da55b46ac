package handler

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// ListResponse wraps list endpoints that are not paged.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// bindInt reads an optional integer query parameter. It writes a 422 and
// returns false when the value is not an integer.
func bindInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		requestError(w, name+" must be an integer")
		return nil, false
	}
	return v, true
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// ListPrices handles GET /api/prices.
// Supports ?record_type=cruise|addon, ?account=, ?page= and ?limit=
// (defaults: page=1, limit=50, max=200).
func (s *Server) ListPrices(w http.ResponseWriter, r *http.Request) {
	var filter domain.PriceFilter
	var recordType string
	if err := runtime.BindQueryParameter("form", true, false, "record_type", r.URL.Query(), &recordType); err != nil {
		requestError(w, "invalid record_type")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "account", r.URL.Query(), &filter.Account); err != nil {
		requestError(w, "invalid account")
		return
	}
	filter.RecordType = domain.RecordType(recordType)

	page, ok := bindInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := bindInt(w, r, "limit")
	if !ok {
		return
	}

	result, err := s.dashboard.Prices(r.Context(), filter, domain.NewListParams(page, limit))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListOffers handles GET /api/offers?limit=.
func (s *Server) ListOffers(w http.ResponseWriter, r *http.Request) {
	limit, ok := bindInt(w, r, "limit")
	if !ok {
		return
	}
	offers, err := s.dashboard.Offers(r.Context(), derefInt(limit))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.OfferRecord]{Data: offers})
}

// ListBookings handles GET /api/bookings.
func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.dashboard.Bookings(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.BookedCruise]{Data: bookings})
}

// ListRunLog handles GET /api/run-log?limit=.
func (s *Server) ListRunLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := bindInt(w, r, "limit")
	if !ok {
		return
	}
	entries, err := s.dashboard.RunLog(r.Context(), derefInt(limit))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[domain.RunLogEntry]{Data: entries})
}

// GetSummary handles GET /api/summary.
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.Summary(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
