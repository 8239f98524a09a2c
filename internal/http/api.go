package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"income-tax/internal/domain"
	"income-tax/internal/service"
	"income-tax/internal/tax"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	taxes  service.TaxService
	users  service.UserService
	tokens *TokenIssuer
	logger *logrus.Logger
}

// NewHandler gates admin routes on the user service's seed username.
func NewHandler(taxes service.TaxService, users service.UserService, tokens *TokenIssuer, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		taxes:  taxes,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/login", h.login)
		api.POST("/auth/register", h.register)

		authed := api.Group("", h.requireAuth())
		authed.GET("/rates", h.getRates)
		authed.POST("/tax/compute", h.computeTax)
		authed.POST("/tax/explain", h.explainTax)

		admin := authed.Group("", h.requireAdmin())
		admin.PUT("/rates", h.replaceRates)
		admin.GET("/users", h.listUsers)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.users.Authenticate(c.Request.Context(), req.Username, req.Password) {
		h.logger.WithField("username", req.Username).Info("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, expires, err := h.tokens.Issue(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
		"username":   req.Username,
	})
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrPasswordRejected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !created {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}
	h.logger.WithField("username", req.Username).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"username": req.Username})
}

func (h *Handler) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"usernames": h.users.Usernames(c.Request.Context())})
}

type incomeRequest struct {
	Salary          decimal.Decimal `json:"salary"`
	Bonus           decimal.Decimal `json:"bonus"`
	SocialSecurity  decimal.Decimal `json:"social_security"`
	ProvidentFund   decimal.Decimal `json:"provident_fund"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
}

var errNegativeAmount = errors.New("amounts must not be negative")

func (r incomeRequest) record() (domain.IncomeRecord, error) {
	for _, v := range []decimal.Decimal{r.Salary, r.Bonus, r.SocialSecurity, r.ProvidentFund, r.OtherDeductions} {
		if v.IsNegative() {
			return domain.IncomeRecord{}, errNegativeAmount
		}
	}
	return domain.IncomeRecord{
		Salary:          r.Salary,
		Bonus:           r.Bonus,
		SocialSecurity:  r.SocialSecurity,
		ProvidentFund:   r.ProvidentFund,
		OtherDeductions: r.OtherDeductions,
	}, nil
}

func bindIncome(c *gin.Context) (domain.IncomeRecord, bool) {
	var req incomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.IncomeRecord{}, false
	}
	rec, err := req.record()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.IncomeRecord{}, false
	}
	return rec, true
}

func (h *Handler) computeTax(c *gin.Context) {
	rec, ok := bindIncome(c)
	if !ok {
		return
	}
	payable := h.taxes.Compute(c.Request.Context(), rec)
	c.JSON(http.StatusOK, gin.H{"tax": money(payable)})
}

func (h *Handler) explainTax(c *gin.Context) {
	rec, ok := bindIncome(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, breakdownToResponse(h.taxes.Explain(c.Request.Context(), rec)))
}

func (h *Handler) getRates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"brackets": tableToResponse(h.taxes.Table(c.Request.Context()))})
}

type replaceRatesRequest struct {
	Brackets              []BracketPayload `json:"brackets" binding:"required"`
	DeriveQuickDeductions bool             `json:"derive_quick_deductions"`
}

func (h *Handler) replaceRates(c *gin.Context) {
	var req replaceRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	table := make(domain.RateTable, len(req.Brackets))
	for i, b := range req.Brackets {
		table[i] = b.bracket()
	}

	replaced, err := h.taxes.ReplaceTable(c.Request.Context(), table, req.DeriveQuickDeductions)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRateTable) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.WithField("brackets", len(replaced)).Info("rate table replaced")
	c.JSON(http.StatusOK, gin.H{"brackets": tableToResponse(replaced)})
}

// BracketPayload is the wire form of a tax bracket. A null upper bound is unbounded.
type BracketPayload struct {
	Lower          decimal.Decimal     `json:"lower"`
	Upper          decimal.NullDecimal `json:"upper"`
	Rate           decimal.Decimal     `json:"rate"`
	QuickDeduction decimal.Decimal     `json:"quick_deduction"`
}

func (p BracketPayload) bracket() domain.TaxBracket {
	return domain.TaxBracket{
		Lower:          p.Lower,
		Upper:          p.Upper,
		Rate:           p.Rate,
		QuickDeduction: p.QuickDeduction,
	}
}

type BreakdownResponse struct {
	TotalIncome       string   `json:"total_income"`
	TotalDeductions   string   `json:"total_deductions"`
	StandardDeduction string   `json:"standard_deduction"`
	TaxableIncome     string   `json:"taxable_income"`
	Taxable           bool     `json:"taxable"`
	Matched           bool     `json:"matched"`
	Rate              *string  `json:"rate,omitempty"`
	QuickDeduction    *string  `json:"quick_deduction,omitempty"`
	Tax               string   `json:"tax"`
	Details           []string `json:"details"`
}

func breakdownToResponse(b tax.Breakdown) BreakdownResponse {
	resp := BreakdownResponse{
		TotalIncome:       money(b.TotalIncome),
		TotalDeductions:   money(b.TotalDeductions),
		StandardDeduction: money(b.StandardDeduction),
		TaxableIncome:     money(b.TaxableIncome),
		Taxable:           b.Taxable,
		Matched:           b.Matched,
		Tax:               money(b.Tax),
		Details:           b.Lines(),
	}
	if b.Matched {
		rate := b.Bracket.Rate.String()
		quick := money(b.Bracket.QuickDeduction)
		resp.Rate = &rate
		resp.QuickDeduction = &quick
	}
	return resp
}

type BracketResponse struct {
	Lower          string  `json:"lower"`
	Upper          *string `json:"upper"`
	Rate           string  `json:"rate"`
	QuickDeduction string  `json:"quick_deduction"`
}

func tableToResponse(table domain.RateTable) []BracketResponse {
	resp := make([]BracketResponse, len(table))
	for i, b := range table {
		resp[i] = BracketResponse{
			Lower:          money(b.Lower),
			Rate:           b.Rate.String(),
			QuickDeduction: money(b.QuickDeduction),
		}
		if !b.Unbounded() {
			v := money(b.Upper.Decimal)
			resp[i].Upper = &v
		}
	}
	return resp
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
