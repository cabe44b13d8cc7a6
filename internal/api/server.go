package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"magnate/internal/bots"
	"magnate/internal/config"
	"magnate/internal/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg config.APIConfig
	log *slog.Logger
	sim *sim.Service
	mux *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, simSvc *sim.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		log: logger,
		sim: simSvc,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/candles", s.handleCandles)
		r.Get("/orders", s.handleOrderBook)
		r.Get("/companies/{code}", s.handleCompany)
		r.Get("/companies/{code}/ledger", s.handleCompanyLedger)
		r.Get("/workforce/roles", s.handleWorkforceRoles)
		r.Get("/audit", s.handleAudit)

		r.Post("/orders", s.handlePlaceOrder)
		r.Delete("/orders/{id}", s.handleCancelOrder)
		r.Post("/jobs/production", s.handleStartProduction)
		r.Post("/jobs/research", s.handleStartResearch)
		r.Post("/contracts", s.handleCreateContract)
		r.Post("/workforce/recruit", s.handleRecruit)

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/ticks/advance", s.handleAdvanceTicks)
			r.Post("/bots/run", s.handleRunBots)
			r.Post("/companies/{code}/adjust-cash", s.handleAdjustCash)
		})
	})
}

// adminMiddleware guards operator endpoints with a static bearer token.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.sim.GetWorldTickState(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAdvanceTicks(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Ticks int64 `json:"ticks"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Ticks == 0 {
		in.Ticks = 1
	}
	if err := s.sim.AdvanceSimulationTicks(r.Context(), in.Ticks); err != nil {
		writeDomainError(w, err)
		return
	}
	state, err := s.sim.GetWorldTickState(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyCode    string `json:"company_code"`
		ItemID         int64  `json:"item_id"`
		RegionID       int64  `json:"region_id"`
		Side           string `json:"side"`
		Quantity       int64  `json:"quantity"`
		UnitPriceCents int64  `json:"unit_price_cents"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companyID, err := s.sim.CompanyIDByCode(r.Context(), in.CompanyCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	orderID, err := s.sim.PlaceMarketOrder(r.Context(), sim.PlaceOrderInput{
		CompanyID:      companyID,
		ItemID:         in.ItemID,
		RegionID:       in.RegionID,
		Side:           strings.ToUpper(strings.TrimSpace(in.Side)),
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
		Tick:           -1,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order_id": orderID})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	if err := s.sim.CancelOrder(r.Context(), orderID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	itemID, err := queryInt64(r, "item_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	regionID, err := queryInt64(r, "region_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.sim.OpenOrders(r.Context(), itemID, regionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	itemID, err := queryInt64(r, "item_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	regionID, err := queryInt64(r, "region_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fromTick, _ := queryInt64(r, "from_tick")
	toTick, err := queryInt64(r, "to_tick")
	if err != nil {
		state, stateErr := s.sim.GetWorldTickState(r.Context())
		if stateErr != nil {
			writeDomainError(w, stateErr)
			return
		}
		toTick = state.CurrentTick
	}
	candles, err := s.sim.Candles(r.Context(), itemID, regionID, fromTick, toTick)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candles": candles})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := s.sim.CompanyIDByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.sim.Company(r.Context(), companyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompanyLedger(w http.ResponseWriter, r *http.Request) {
	companyID, err := s.sim.CompanyIDByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit := 0
	if n, err := queryInt64(r, "limit"); err == nil {
		limit = int(n)
	}
	entries, err := s.sim.CompanyLedger(r.Context(), companyID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleStartProduction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyCode string `json:"company_code"`
		RecipeID    int64  `json:"recipe_id"`
		Runs        int64  `json:"runs"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companyID, err := s.sim.CompanyIDByCode(r.Context(), in.CompanyCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if in.Runs == 0 {
		in.Runs = 1
	}
	jobID, err := s.sim.StartProductionJob(r.Context(), sim.StartProductionInput{
		CompanyID: companyID,
		RecipeID:  in.RecipeID,
		Runs:      in.Runs,
		Tick:      -1,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job_id": jobID})
}

func (s *Server) handleStartResearch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyCode string `json:"company_code"`
		NodeID      int64  `json:"node_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companyID, err := s.sim.CompanyIDByCode(r.Context(), in.CompanyCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jobID, err := s.sim.StartResearchJob(r.Context(), sim.StartResearchInput{
		CompanyID: companyID,
		NodeID:    in.NodeID,
		Tick:      -1,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"job_id": jobID})
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BuyerCode        string `json:"buyer_code"`
		SellerCode       string `json:"seller_code"`
		ItemID           int64  `json:"item_id"`
		RegionID         int64  `json:"region_id"`
		Quantity         int64  `json:"quantity"`
		UnitPriceCents   int64  `json:"unit_price_cents"`
		ShipmentFeeCents int64  `json:"shipment_fee_cents"`
		DueTick          int64  `json:"due_tick"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyerID, err := s.sim.CompanyIDByCode(r.Context(), in.BuyerCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sellerID, err := s.sim.CompanyIDByCode(r.Context(), in.SellerCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	contractID, err := s.sim.CreateContract(r.Context(), sim.CreateContractInput{
		BuyerID:          buyerID,
		SellerID:         sellerID,
		ItemID:           in.ItemID,
		RegionID:         in.RegionID,
		Quantity:         in.Quantity,
		UnitPriceCents:   in.UnitPriceCents,
		ShipmentFeeCents: in.ShipmentFeeCents,
		DueTick:          in.DueTick,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contract_id": contractID})
}

func (s *Server) handleWorkforceRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": sim.WorkforceRoles()})
}

func (s *Server) handleRecruit(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyCode string `json:"company_code"`
		RoleCode    string `json:"role_code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companyID, err := s.sim.CompanyIDByCode(r.Context(), in.CompanyCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	employeeID, err := s.sim.RecruitEmployee(r.Context(), sim.RecruitInput{
		CompanyID: companyID,
		RoleCode:  strings.ToUpper(strings.TrimSpace(in.RoleCode)),
		Tick:      -1,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"employee_id": employeeID})
}

func (s *Server) handleRunBots(w http.ResponseWriter, r *http.Request) {
	result, err := s.sim.RunBotsForTick(r.Context(), -1, bots.DefaultConfig())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.sim.AuditWorld(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdjustCash(w http.ResponseWriter, r *http.Request) {
	companyID, err := s.sim.CompanyIDByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		DeltaCents int64  `json:"delta_cents"`
		Reason     string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.sim.AdjustCompanyCash(r.Context(), companyID, in.DeltaCents, in.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance_cents": balance})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sim.ErrInvalidTickCount),
		errors.Is(err, sim.ErrInsufficientFunds),
		errors.Is(err, sim.ErrInsufficientInventory),
		errors.Is(err, sim.ErrRecipeLocked),
		errors.Is(err, sim.ErrResearchUnavailable),
		errors.Is(err, sim.ErrNoWorkforce),
		errors.Is(err, sim.ErrInvariant):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sim.ErrOrderNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sim.ErrLockConflict), errors.Is(err, sim.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sim.ErrOrderNotFound),
		errors.Is(err, sim.ErrCompanyNotFound),
		errors.Is(err, sim.ErrItemNotFound),
		errors.Is(err, sim.ErrRegionNotFound),
		errors.Is(err, sim.ErrRecipeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func queryInt64(r *http.Request, key string) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, errors.New(key + " is required")
	}
	return strconv.ParseInt(v, 10, 64)
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
