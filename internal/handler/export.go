package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// csvHeaders defines the column names written as the first row of a CSV export.
var csvHeaders = []string{
	"id", "checked_at", "record_type", "account", "reservation_id",
	"product_code", "product_name", "passenger_name", "paid_price",
	"current_price", "currency", "notified", "label",
}

// ExportPrices handles GET /api/prices/export.
// Takes the same record_type and account filters as ListPrices. Use
// ?format=csv to receive CSV; default is JSON.
func (s *Server) ExportPrices(w http.ResponseWriter, r *http.Request) {
	var filter domain.PriceFilter
	var recordType, format string
	q := r.URL.Query()
	for name, dest := range map[string]*string{"record_type": &recordType, "account": &filter.Account, "format": &format} {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			requestError(w, "invalid "+name)
			return
		}
	}
	filter.RecordType = domain.RecordType(recordType)
	if format != "" && format != "csv" && format != "json" {
		requestError(w, "format must be csv or json")
		return
	}

	rows, err := s.dashboard.Export(r.Context(), filter)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	if format != "csv" {
		writeJSON(w, http.StatusOK, ListResponse[domain.PriceRecord]{Data: rows})
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write(csvHeaders)
	for _, row := range rows {
		_ = cw.Write(priceToCSVRecord(row))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="price_history.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// priceToCSVRecord flattens a record. Nil pointers are encoded as empty strings.
func priceToCSVRecord(p domain.PriceRecord) []string {
	paid := ""
	if p.PaidPrice != nil {
		paid = formatMoney(*p.PaidPrice)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.CheckedAt.UTC().Format(time.RFC3339),
		string(p.RecordType),
		deref(p.AccountIdentity),
		deref(p.ReservationID),
		p.ProductCode,
		p.ProductName,
		deref(p.PassengerName),
		paid,
		formatMoney(p.CurrentPrice),
		p.Currency,
		strconv.FormatBool(p.Notified),
		deref(p.Label),
	}
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
