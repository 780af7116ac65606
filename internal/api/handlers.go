package api

import (
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradeview/internal/backtest"
	"tradeview/internal/domain"
	"tradeview/internal/feed"
	"tradeview/internal/paramset"
	"tradeview/internal/store"
	"tradeview/internal/strategy"
)

// response is the envelope every endpoint returns.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, response{Success: false, Message: msg})
}

// failErr maps err to a status code and writes the envelope.
func (s *Server) failErr(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"request_id", c.GetString(requestIDKey), "path", c.Request.URL.Path, "error", err)
	}
	fail(c, status, err.Error())
}

func statusFor(err error) int {
	var dataErr *backtest.DataError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, domain.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrInvalidParams),
		errors.Is(err, paramset.ErrInvalid),
		errors.Is(err, backtest.ErrInvalidCapital):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrNoFetcher):
		return http.StatusServiceUnavailable
	case errors.As(err, &dataErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ---------------------------------------------------------------------------
// Health and strategies
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":     "ok",
		"version":    s.deps.Version,
		"strategies": len(s.deps.Registry.List()),
	})
}

// strategyInfo is a descriptor plus its resolved defaults.
type strategyInfo struct {
	strategy.Descriptor
	DefaultParams strategy.Params `json:"default_params"`
}

func (s *Server) handleListStrategies(c *gin.Context) {
	descs := s.deps.Registry.Descriptors()
	out := make([]strategyInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, strategyInfo{Descriptor: d, DefaultParams: d.DefaultParams()})
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) handleGetStrategy(c *gin.Context) {
	d, found := s.deps.Registry.Get(c.Param("name"))
	if !found {
		fail(c, http.StatusNotFound, "strategy not found: "+c.Param("name"))
		return
	}
	ok(c, http.StatusOK, strategyInfo{Descriptor: d, DefaultParams: d.DefaultParams()})
}

// ---------------------------------------------------------------------------
// Symbols and data
// ---------------------------------------------------------------------------

func (s *Server) handleListSymbols(c *gin.Context) {
	symbols, err := s.deps.Feed.Symbols(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, symbols)
}

func (s *Server) handleListLocal(c *gin.Context) {
	local, err := s.deps.Feed.ListLocal(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, local)
}

type addSymbolRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleAddSymbol(c *gin.Context) {
	var req addSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	r, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	cov, err := s.deps.Feed.Refresh(c.Request.Context(), req.Symbol, r)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cov)
}

func (s *Server) handleDeleteSymbol(c *gin.Context) {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	if err := s.deps.Feed.Delete(c.Request.Context(), symbol); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"symbol": symbol})
}

func (s *Server) handleGetData(c *gin.Context) {
	r, err := domain.ParseDateRange(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	bars, err := s.deps.Feed.Bars(c.Request.Context(), symbol, r)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"symbol":  symbol,
		"records": len(bars),
		"bars":    backtest.Sample(bars, MaxDataBars),
	})
}

// ---------------------------------------------------------------------------
// Parameter sets
// ---------------------------------------------------------------------------

type paramSetRequest struct {
	Name        string         `json:"name"`
	Strategy    string         `json:"strategy"`
	Symbol      string         `json:"symbol"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description"`
}

func (r paramSetRequest) paramSet(id string) domain.ParamSet {
	return domain.ParamSet{
		ID:          id,
		Name:        r.Name,
		Strategy:    r.Strategy,
		Symbol:      r.Symbol,
		Params:      r.Params,
		Description: r.Description,
	}
}

func (s *Server) handleListConfigs(c *gin.Context) {
	sets, err := s.deps.ParamSets.List(c.Request.Context(), c.Query("strategy"), c.Query("symbol"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	if sets == nil {
		sets = []domain.ParamSet{}
	}
	ok(c, http.StatusOK, sets)
}

func (s *Server) handleCreateConfig(c *gin.Context) {
	var req paramSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := s.deps.ParamSets.Save(c.Request.Context(), req.paramSet(""))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ps)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	ps, err := s.deps.ParamSets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ps)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.deps.ParamSets.Get(ctx, id); err != nil {
		s.failErr(c, err)
		return
	}
	var req paramSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := s.deps.ParamSets.Save(ctx, req.paramSet(id))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ps)
}

func (s *Server) handleDeleteConfig(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.ParamSets.Delete(c.Request.Context(), id); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (s *Server) handleDuplicateConfig(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	ps, err := s.deps.ParamSets.Duplicate(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ps)
}

func (s *Server) handleExportConfig(c *gin.Context) {
	format, err := paramset.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	id := c.Param("id")
	data, err := s.deps.ParamSets.Export(c.Request.Context(), id, format)
	if err != nil {
		s.failErr(c, err)
		return
	}
	contentType := "application/json"
	if format == paramset.FormatYAML {
		contentType = "application/yaml"
	}
	c.Header("Content-Disposition", `attachment; filename="`+id+"."+string(format)+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleImportConfig(c *gin.Context) {
	format, err := paramset.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := s.deps.ParamSets.Import(c.Request.Context(), data, format)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ps)
}

// ---------------------------------------------------------------------------
// Backtests and runs
// ---------------------------------------------------------------------------

type backtestRequest struct {
	Strategy       string         `json:"strategy"`
	Symbol         string         `json:"symbol"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	InitialCapital float64        `json:"initial_capital"`
	Params         map[string]any `json:"params"`
	ConfigID       string         `json:"config_id"`
}

type backtestResponse struct {
	RunID  string           `json:"run_id,omitempty"`
	Report *backtest.Report `json:"report"`
}

// request resolves a saved parameter set, if named, beneath the explicit
// fields of br.
func (s *Server) request(c *gin.Context, br backtestRequest) (backtest.Request, error) {
	req := backtest.Request{
		Strategy:       br.Strategy,
		Symbol:         domain.NormalizeSymbol(br.Symbol),
		Params:         strategy.Params{},
		InitialCapital: br.InitialCapital,
	}
	if br.ConfigID != "" {
		ps, err := s.deps.ParamSets.Get(c.Request.Context(), br.ConfigID)
		if err != nil {
			return req, err
		}
		if req.Strategy == "" {
			req.Strategy = ps.Strategy
		}
		if req.Symbol == "" {
			req.Symbol = ps.Symbol
		}
		maps.Copy(req.Params, ps.Params)
	}
	maps.Copy(req.Params, br.Params)

	if req.Strategy == "" || req.Symbol == "" {
		return req, errors.New("strategy and symbol are required")
	}
	r, err := domain.ParseDateRange(br.StartDate, br.EndDate)
	if err != nil {
		return req, err
	}
	req.Range = s.deps.Feed.Resolve(r)
	return req, nil
}

func (s *Server) handleBacktest(c *gin.Context) {
	var br backtestRequest
	if err := c.ShouldBindJSON(&br); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	req, err := s.request(c, br)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		s.failErr(c, err)
		return
	}

	ctx := c.Request.Context()
	rep, err := s.deps.Runner.Run(ctx, req)
	if err != nil {
		s.failErr(c, err)
		return
	}

	resp := backtestResponse{}
	if s.deps.Runs != nil {
		id, err := s.saveRun(c, req, rep)
		if err != nil {
			s.failErr(c, err)
			return
		}
		resp.RunID = id
	}

	sampled := *rep
	sampled.EquityCurve = backtest.Sample(rep.EquityCurve, MaxEquityPoints)
	resp.Report = &sampled
	ok(c, http.StatusOK, resp)
}

func (s *Server) saveRun(c *gin.Context, req backtest.Request, rep *backtest.Report) (string, error) {
	body, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	run := &store.RunRecord{
		ID:        uuid.NewString(),
		Strategy:  req.Strategy,
		Symbol:    req.Symbol,
		StartDate: req.Range.Start.Format(domain.DateLayout),
		EndDate:   req.Range.End.Format(domain.DateLayout),
		Params:    req.Params,
		CreatedAt: s.now().UTC(),
		Report:    body,
	}
	if err := s.deps.Runs.SaveRun(c.Request.Context(), run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.deps.Runs == nil {
		ok(c, http.StatusOK, []store.RunRecord{})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := s.deps.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.failErr(c, err)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	ok(c, http.StatusOK, runs)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.deps.Runs == nil {
		fail(c, http.StatusNotFound, "run history disabled")
		return
	}
	run, err := s.deps.Runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, run)
}
