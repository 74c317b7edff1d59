package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parcelrates/internal/pricing"
	"parcelrates/internal/store"
)

const noServiceMessage = "No services available for selected country, category & weight"

type Server struct {
	store  store.Store
	engine *pricing.Engine
	log    *zap.Logger
}

// New wires the HTTP surface. A nil logger falls back to a no-op logger so
// tests can construct the handler bare.
func New(st store.Store, eng *pricing.Engine, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: st, engine: eng, log: logger}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/quotes", s.handleQuote)

	r.Get("/countries/ship-from", s.handleShipFromCountries)
	r.Get("/countries/ship-to", s.handleShipToCountries)

	r.Get("/rates", s.handleAllRates)
	r.Get("/rates/{courier}/{country}", s.handleRatesByCourier)
	r.Delete("/rates/{courier}/{country}", s.handleDeleteRatesByCourier)

	r.Route("/overrides", func(r chi.Router) {
		r.Post("/", s.handleCreateOverride)
		r.Get("/", s.handleListOverrides)
		r.Get("/{id}", s.handleGetOverride)
		r.Put("/{id}", s.handleUpdateOverride)
		r.Delete("/{id}", s.handleDeleteOverride)
	})

	r.Route("/couriers", func(r chi.Router) {
		r.Post("/", s.handleCreateCourier)
		r.Get("/", s.handleListCouriers)
		r.Get("/{id}", s.handleGetCourier)
		r.Put("/{id}", s.handleUpdateCourier)
		r.Delete("/{id}", s.handleDeleteCourier)
	})

	r.Get("/zones", s.handleZones)
	r.Get("/zone-rates", s.handleZoneRates)
	r.Patch("/zone-rates/markup", s.handleSetZoneMarkup)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Quotes

type quoteResponse struct {
	Cheapest pricing.Cell        `json:"cheapest"`
	Count    int                 `json:"count"`
	Message  string              `json:"message"`
	Lines    []pricing.QuoteLine `json:"lines"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shipFrom := strings.TrimSpace(q.Get("ship_from"))
	shipTo := strings.TrimSpace(q.Get("ship_to"))
	if shipFrom == "" || shipTo == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "ship_from and ship_to required")
		return
	}
	cat, err := pricing.ParseCategory(q.Get("category"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_category", err.Error())
		return
	}

	req := pricing.Request{ShipFrom: shipFrom, ShipTo: shipTo, Category: cat}
	if raw := strings.TrimSpace(q.Get("weight")); raw != "" {
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil || weight < 0 {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_weight", "weight must be a non-negative number")
			return
		}
		req.WeightKg = &weight
	}

	result, err := s.engine.Quote(r.Context(), req)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidCategory) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_category", err.Error())
			return
		}
		s.log.Error("quote resolution failed",
			zap.String("ship_from", shipFrom),
			zap.String("ship_to", shipTo),
			zap.String("category", string(cat)),
			zap.Error(err))
		writeErrorJSON(w, http.StatusBadGateway, "upstream_unavailable", "rate store unavailable")
		return
	}

	resp := quoteResponse{
		Cheapest: result.Cheapest,
		Count:    len(result.Lines),
		Lines:    result.Lines,
	}
	if resp.Lines == nil {
		resp.Lines = []pricing.QuoteLine{}
	}
	if resp.Count == 0 {
		resp.Message = noServiceMessage
	} else {
		resp.Message = strconv.Itoa(resp.Count) + " option(s) found for selected country & weight"
	}
	writeJSON(w, http.StatusOK, resp)
}

// Countries

func (s *Server) handleShipFromCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.store.ShipFromCountries(r.Context())
	if err != nil {
		s.dbError(w, "list ship from countries", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: orEmpty(countries), Message: "Ship From Countries fetched successfully"})
}

func (s *Server) handleShipToCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := s.store.ShipToCountries(r.Context())
	if err != nil {
		s.dbError(w, "list ship to countries", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: orEmpty(countries), Message: "Ship To Countries fetched successfully"})
}

// Rates

func (s *Server) handleAllRates(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.AllRates(r.Context())
	if err != nil {
		s.dbError(w, "list rates", err)
		return
	}
	writeJSON(w, http.StatusOK, rateListResponse{Count: len(rows), Data: rateRowsJSON(rows)})
}

func (s *Server) handleRatesByCourier(w http.ResponseWriter, r *http.Request) {
	courier := chi.URLParam(r, "courier")
	country := chi.URLParam(r, "country")
	rows, err := s.store.RatesByCourier(r.Context(), courier, country)
	if err != nil {
		s.dbError(w, "list rates by courier", err)
		return
	}
	writeJSON(w, http.StatusOK, rateListResponse{Count: len(rows), Data: rateRowsJSON(rows)})
}

func (s *Server) handleDeleteRatesByCourier(w http.ResponseWriter, r *http.Request) {
	courier := chi.URLParam(r, "courier")
	country := chi.URLParam(r, "country")
	n, err := s.store.DeleteRatesByCourier(r.Context(), courier, country)
	if err != nil {
		s.dbError(w, "delete rates by courier", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

// Overrides

type overrideRequest struct {
	Country string       `json:"country"`
	Price   *json.Number `json:"price"`
	Type    string       `json:"type"`
}

// overrideType mirrors the admin form's defaulting: anything that is not
// explicitly "sender" is a receiver override.
func overrideType(t string) string {
	if t == pricing.OverrideSender {
		return pricing.OverrideSender
	}
	return pricing.OverrideReceiver
}

func parsePrice(n *json.Number) (decimal.Decimal, bool) {
	if n == nil {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (s *Server) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Country) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "country is required")
		return
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "price must be a valid number")
		return
	}
	ov, err := s.store.CreateOverride(r.Context(), req.Country, price, overrideType(req.Type))
	if err != nil {
		s.dbError(w, "create override", err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Data: ov, Message: "Country price override created successfully"})
}

func (s *Server) handleUpdateOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Country) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "country is required")
		return
	}
	var price decimal.Decimal
	if req.Price != nil {
		var ok bool
		price, ok = parsePrice(req.Price)
		if !ok {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "price must be a valid number")
			return
		}
	} else {
		// Price omitted: keep the stored value.
		existing, err := s.store.OverrideByID(r.Context(), id)
		if err != nil {
			s.dbError(w, "get override", err)
			return
		}
		if existing == nil {
			writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "override not found")
			return
		}
		price = existing.Price
	}
	ov, err := s.store.UpdateOverride(r.Context(), id, req.Country, price, overrideType(req.Type))
	if err != nil {
		s.dbError(w, "update override", err)
		return
	}
	if ov == nil {
		writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "override not found")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: ov, Message: "Country price override updated successfully"})
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Overrides(r.Context())
	if err != nil {
		s.dbError(w, "list overrides", err)
		return
	}
	if rows == nil {
		rows = []pricing.Override{}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: rows, Message: "Country price overrides retrieved successfully"})
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ov, err := s.store.OverrideByID(r.Context(), id)
	if err != nil {
		s.dbError(w, "get override", err)
		return
	}
	if ov == nil {
		writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "override not found")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: ov, Message: "Country price override retrieved successfully"})
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteOverride(r.Context(), id); err != nil {
		s.dbError(w, "delete override", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Message: "Country price override deleted successfully"})
}

// Couriers

type courierRequest struct {
	Name string  `json:"name"`
	Logo *string `json:"logo"`
}

func (s *Server) handleCreateCourier(w http.ResponseWriter, r *http.Request) {
	var req courierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	c, err := s.store.CreateCourier(r.Context(), req.Name, req.Logo)
	if err != nil {
		s.dbError(w, "create courier", err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Data: c, Message: "Courier created successfully"})
}

func (s *Server) handleUpdateCourier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req courierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	c, err := s.store.UpdateCourier(r.Context(), id, req.Name, req.Logo)
	if err != nil {
		s.dbError(w, "update courier", err)
		return
	}
	if c == nil {
		writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "courier not found")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: c, Message: "Courier updated successfully"})
}

func (s *Server) handleListCouriers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.Couriers(r.Context())
	if err != nil {
		s.dbError(w, "list couriers", err)
		return
	}
	if rows == nil {
		rows = []store.Courier{}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: rows, Message: "Couriers retrieved successfully"})
}

func (s *Server) handleGetCourier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.CourierByID(r.Context(), id)
	if err != nil {
		s.dbError(w, "get courier", err)
		return
	}
	if c == nil {
		writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "courier not found")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: c, Message: "Courier retrieved successfully"})
}

func (s *Server) handleDeleteCourier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCourier(r.Context(), id); err != nil {
		s.dbError(w, "delete courier", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Message: "Courier deleted successfully"})
}

// Zone rates

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.Zones(r.Context())
	if err != nil {
		s.dbError(w, "list zones", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: orEmpty(zones), Message: "Zones fetched successfully"})
}

func (s *Server) handleZoneRates(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ZoneRates(r.Context())
	if err != nil {
		s.dbError(w, "list zone rates", err)
		return
	}
	if rows == nil {
		rows = []store.ZoneRate{}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: rows, Message: "All rates are fetched successfully"})
}

type markupRequest struct {
	Zone     string       `json:"zone"`
	Category string       `json:"category"`
	Markup   *json.Number `json:"markup"`
}

func (s *Server) handleSetZoneMarkup(w http.ResponseWriter, r *http.Request) {
	var req markupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if req.Markup == nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "markup value is required")
		return
	}
	markup, err := decimal.NewFromString(req.Markup.String())
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "markup must be a valid number")
		return
	}
	if err := s.store.SetZoneMarkup(r.Context(), req.Zone, req.Category, markup); err != nil {
		if errors.Is(err, store.ErrInvalidMarkupCategory) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "invalid markup category")
			return
		}
		s.dbError(w, "set zone markup", err)
		return
	}
	rows, err := s.store.ZoneRates(r.Context())
	if err != nil {
		s.dbError(w, "list zone rates", err)
		return
	}
	if rows == nil {
		rows = []store.ZoneRate{}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: rows, Message: "Markup updated successfully"})
}

// Helpers

type dataResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

type rateListResponse struct {
	Count int   `json:"count"`
	Data  []any `json:"data"`
}

// rateRowsJSON flattens rate rows into the wire shape: tier columns inline
// next to the metadata, cells serialized through their tagged variant.
func rateRowsJSON(rows []pricing.RateRow) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m := map[string]any{
			"id":            row.ID,
			"ship_from":     row.ShipFrom,
			"ship_to":       row.ShipTo,
			"courier":       row.Courier,
			"service":       row.Service,
			"rating":        row.Rating,
			"insurance":     row.Insurance,
			"elect_liquids": row.ElectLiquids,
			"days_envelop":  row.DaysEnvelope,
			"days_parcel":   row.DaysParcel,
		}
		for key, cell := range row.Cells {
			m[key] = cell
		}
		out = append(out, m)
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) dbError(w http.ResponseWriter, op string, err error) {
	s.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorJSON writes a standardized JSON error response:
// {"error": {"code": string, "message": string}}
func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through the injected zap logger.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
