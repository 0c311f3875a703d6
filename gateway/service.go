package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxTxBytes      = 64 << 10
)

// Service is the HTTP surface used by the campaign pages.
type Service struct {
	engine     *gin.Engine
	backend    Backend
	listenAddr string
	logger     cmtlog.Logger
	srv        *http.Server
}

func NewService(listenAddr string, backend Backend, logger cmtlog.Logger) *Service {
	r := gin.New()
	s := &Service{
		engine:     r,
		backend:    backend,
		listenAddr: listenAddr,
		logger:     logger.With("module", "gateway"),
	}
	r.Use(gin.Recovery(), s.logRequest)
	r.GET("/campaigns", s.handleGetCampaigns)
	r.GET("/campaigns/:address", s.handleGetCampaign)
	r.GET("/campaigns/:address/requests", s.handleGetRequests)
	r.GET("/campaigns/:address/requests/:index", s.handleGetRequest)
	r.GET("/campaigns/:address/contributors/:identity", s.handleGetContributor)
	r.GET("/accounts/:address", s.handleGetAccount)
	r.POST("/tx", s.handlePostTx)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called.
func (s *Service) Start() error {
	s.srv = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("gateway listening", "addr", s.listenAddr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Service) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"elapsed", time.Since(start).String())
}

// statusOf maps an error kind to the HTTP status shown to the page.
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrCampaignNotFound), errors.Is(err, types.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSigInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrUnauthorized), errors.Is(err, types.ErrNotAContributor):
		return http.StatusForbidden
	case errors.Is(err, types.ErrAlreadyVoted), errors.Is(err, types.ErrRequestAlreadyComplete), errors.Is(err, types.ErrNonceInvalid):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidTx), errors.Is(err, types.ErrInvalidRecipient), errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidCampaign), errors.Is(err, types.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMajorityNotReached), errors.Is(err, types.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrFundsUnavailable):
		return http.StatusPaymentRequired
	case errors.Is(err, types.ErrTransferFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Service) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": types.ErrorCode(err)})
}

func parseAddress(c *gin.Context, name string) (common.Address, bool) {
	v := c.Param(name)
	if !common.IsHexAddress(v) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address " + v, "code": types.CodeInvalidTx})
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func queryUint(c *gin.Context, name string, def uint64) (uint64, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": types.CodeInvalidTx})
		return 0, false
	}
	return n, true
}

func (s *Service) handleGetCampaigns(c *gin.Context) {
	offset, ok := queryUint(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := queryUint(c, "limit", DefaultPageSize)
	if !ok {
		return
	}
	if limit == 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	addrs, total, err := s.backend.DeployedCampaigns(offset, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	response := types.CampaignList{Total: total, Campaigns: make([]types.Summary, 0, len(addrs))}
	for _, addr := range addrs {
		sum, err := s.backend.Summary(addr)
		if err != nil {
			s.fail(c, err)
			return
		}
		response.Campaigns = append(response.Campaigns, sum)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) handleGetCampaign(c *gin.Context) {
	addr, ok := parseAddress(c, "address")
	if !ok {
		return
	}
	sum, err := s.backend.Summary(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type GetRequestsResponse struct {
	Count    uint64           `json:"count"`
	Requests []*types.Request `json:"requests"`
}

func (s *Service) handleGetRequests(c *gin.Context) {
	addr, ok := parseAddress(c, "address")
	if !ok {
		return
	}
	rs, err := s.backend.Requests(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GetRequestsResponse{Count: uint64(len(rs)), Requests: rs})
}

func (s *Service) handleGetRequest(c *gin.Context) {
	addr, ok := parseAddress(c, "address")
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request index", "code": types.CodeInvalidTx})
		return
	}
	r, err := s.backend.Request(addr, index)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Service) handleGetContributor(c *gin.Context) {
	addr, ok := parseAddress(c, "address")
	if !ok {
		return
	}
	who, ok := parseAddress(c, "identity")
	if !ok {
		return
	}
	amount, member, err := s.backend.Contribution(addr, who)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ContributorStatus{
		Campaign:    addr,
		Identity:    who,
		Contributor: member,
		Amount:      amount,
	})
}

func (s *Service) handleGetAccount(c *gin.Context) {
	addr, ok := parseAddress(c, "address")
	if !ok {
		return
	}
	a, err := s.backend.Account(addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	if a == nil {
		a = &state.Account{Address: addr}
	}
	c.JSON(http.StatusOK, a)
}

func (s *Service) handlePostTx(c *gin.Context) {
	dat, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTxBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": types.CodeInvalidTx})
		return
	}
	btx, err := tx.UnmarshalCFTx(dat)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.backend.Submit(c.Request.Context(), btx)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.Code != types.CodeOK {
		c.JSON(statusOf(res.Err()), res)
		return
	}
	c.JSON(http.StatusOK, res)
}
