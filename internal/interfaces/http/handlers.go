package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/application/service"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
	"github.com/ipecgroup/budget-portal/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	requests service.RequestService
	export   service.ExportService
	users    port.UserStore
	auth     *AuthManager
	debug    bool
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requests service.RequestService,
	export service.ExportService,
	users port.UserStore,
	auth *AuthManager,
	debug bool,
	logger Logger,
) *Handlers {
	return &Handlers{
		requests: requests,
		export:   export,
		users:    users,
		auth:     auth,
		debug:    debug,
		logger:   logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), payload.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	if user == nil || !VerifyPassword(user.PasswordHash, payload.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.auth.cookieName, token, int(h.auth.ttl.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": toUserResponse(user)})
}

// Me handles GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": toUserResponse(user)})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	opts := service.ListOptions{
		Scope:        c.Query("scope"),
		Status:       c.Query("status"),
		Text:         utils.SanitizeString(c.Query("q")),
		View:         c.Query("view"),
		UnitOverride: h.unitOverride(c),
	}

	items, err := h.requests.List(c.Request.Context(), opts, actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]requestResponse, 0, len(items))
	for _, req := range items {
		out = append(out, toRequestResponse(req))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	req, err := h.requests.Get(c.Request.Context(), id, actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": toRequestResponse(req)})
}

type createRequestPayload struct {
	Scope       string      `json:"scope"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	AmountStr   string      `json:"amount_str"`

	Serial         string      `json:"serial"`
	DateJalali     string      `json:"date_jalali"`
	CashAmount     json.Number `json:"cash_amount"`
	CashDateJalali string      `json:"cash_date_jalali"`
	CreditAmount   json.Number `json:"credit_amount"`
	CreditPay      string      `json:"credit_pay"`

	BeneficiaryName string `json:"beneficiary_name"`
	BankInfo        string `json:"bank_info"`

	DocID         string `json:"doc_id"`
	DocOther      string `json:"doc_other"`
	DocNumber     string `json:"doc_number"`
	DocDateJalali string `json:"doc_date_jalali"`

	CurrencyTypeID   *int64 `json:"currency_type_id"`
	CurrencySourceID *int64 `json:"currency_source_id"`
	ProjectID        *int64 `json:"project_id"`
	BudgetCode       string `json:"budget_code"`

	Attachments json.RawMessage `json:"attachments"`
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	amount, _ := parseAmountField(payload.Amount, payload.AmountStr)

	input := service.CreateRequestInput{
		Scope:       payload.Scope,
		Title:       utils.SanitizeString(payload.Title),
		Description: utils.SanitizeString(payload.Description),
		Amount:      amount,

		Serial:         payload.Serial,
		DateJalali:     payload.DateJalali,
		CashDateJalali: payload.CashDateJalali,
		CreditPay:      payload.CreditPay,

		BeneficiaryName: payload.BeneficiaryName,
		BankInfo:        payload.BankInfo,

		DocID:         payload.DocID,
		DocOther:      payload.DocOther,
		DocNumber:     payload.DocNumber,
		DocDateJalali: payload.DocDateJalali,

		CurrencyTypeID:   payload.CurrencyTypeID,
		CurrencySourceID: payload.CurrencySourceID,
		ProjectID:        payload.ProjectID,
		BudgetCode:       payload.BudgetCode,

		Attachments:  string(payload.Attachments),
		UnitOverride: h.unitOverride(c),
	}
	if v, ok := parseAmountField(payload.CashAmount, ""); ok {
		input.CashAmount = &v
	}
	if v, ok := parseAmountField(payload.CreditAmount, ""); ok {
		input.CreditAmount = &v
	}

	req, err := h.requests.Create(c.Request.Context(), input, actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "item": toRequestResponse(req)})
}

// TransitionRequest handles POST /api/requests/status
func (h *Handlers) TransitionRequest(c *gin.Context) {
	var payload struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.ID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	req, err := h.requests.Transition(c.Request.Context(), payload.ID, payload.Status,
		utils.SanitizeString(payload.Note), actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": toRequestResponse(req)})
}

type editRequestPayload struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Amount      *json.Number `json:"amount"`

	Serial         *string      `json:"serial"`
	DateJalali     *string      `json:"date_jalali"`
	CashAmount     *json.Number `json:"cash_amount"`
	CashDateJalali *string      `json:"cash_date_jalali"`
	CreditAmount   *json.Number `json:"credit_amount"`
	CreditPay      *string      `json:"credit_pay"`

	BeneficiaryName *string `json:"beneficiary_name"`
	BankInfo        *string `json:"bank_info"`

	DocID         *string `json:"doc_id"`
	DocOther      *string `json:"doc_other"`
	DocNumber     *string `json:"doc_number"`
	DocDateJalali *string `json:"doc_date_jalali"`

	CurrencyTypeID   *int64  `json:"currency_type_id"`
	CurrencySourceID *int64  `json:"currency_source_id"`
	ProjectID        *int64  `json:"project_id"`
	BudgetCode       *string `json:"budget_code"`

	Attachments *json.RawMessage `json:"attachments"`
}

// EditRequest handles PATCH /api/requests/:id
func (h *Handlers) EditRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var payload editRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	patch := service.EditRequestPatch{
		Title:            payload.Title,
		Description:      payload.Description,
		Serial:           payload.Serial,
		DateJalali:       payload.DateJalali,
		CashDateJalali:   payload.CashDateJalali,
		CreditPay:        payload.CreditPay,
		BeneficiaryName:  payload.BeneficiaryName,
		BankInfo:         payload.BankInfo,
		DocID:            payload.DocID,
		DocOther:         payload.DocOther,
		DocNumber:        payload.DocNumber,
		DocDateJalali:    payload.DocDateJalali,
		CurrencyTypeID:   payload.CurrencyTypeID,
		CurrencySourceID: payload.CurrencySourceID,
		ProjectID:        payload.ProjectID,
		BudgetCode:       payload.BudgetCode,
	}
	if payload.Amount != nil {
		if v, ok := parseAmountField(*payload.Amount, ""); ok {
			patch.Amount = &v
		}
	}
	if payload.CashAmount != nil {
		if v, ok := parseAmountField(*payload.CashAmount, ""); ok {
			patch.CashAmount = &v
		}
	}
	if payload.CreditAmount != nil {
		if v, ok := parseAmountField(*payload.CreditAmount, ""); ok {
			patch.CreditAmount = &v
		}
	}
	if payload.Attachments != nil {
		s := string(*payload.Attachments)
		patch.Attachments = &s
	}

	req, err := h.requests.Edit(c.Request.Context(), id, patch, actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": toRequestResponse(req)})
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.requests.Delete(c.Request.Context(), id, actingUserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ExportRequests handles GET /api/requests/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	opts := service.ListOptions{
		Scope:        c.Query("scope"),
		Status:       c.Query("status"),
		Text:         utils.SanitizeString(c.Query("q")),
		View:         c.Query("view"),
		UnitOverride: h.unitOverride(c),
	}

	data, err := h.export.ExportRegister(c.Request.Context(), opts, actingUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="payment-requests.xlsx"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// unitOverride forwards the trusted unit-kind hint only in debug mode.
func (h *Handlers) unitOverride(c *gin.Context) string {
	if !h.debug {
		return ""
	}
	return c.GetHeader("X-Unit-Kind")
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

func parseAmountField(num json.Number, fallback string) (int64, bool) {
	if num != "" {
		if v, err := num.Int64(); err == nil {
			return v, true
		}
		if v, ok := utils.ParseAmount(num.String()); ok {
			return v, true
		}
	}
	if fallback != "" {
		return utils.ParseAmount(fallback)
	}
	return 0, false
}

// fail maps typed service/domain outcomes to the portal's error tokens.
func (h *Handlers) fail(c *gin.Context, err error) {
	var status int
	var token string

	switch {
	case errors.Is(err, service.ErrNotFound):
		status, token = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrForbidden):
		status, token = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrInvalidStatus):
		status, token = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, service.ErrTitleRequired):
		status, token = http.StatusBadRequest, "title_required"
	case errors.Is(err, service.ErrAmountNotPositive):
		status, token = http.StatusBadRequest, "amount_must_be_positive"
	case errors.Is(err, service.ErrUserUnitRequired):
		status, token = http.StatusUnprocessableEntity, "user_unit_required"
	case errors.Is(err, workflow.ErrChainNotDefined):
		status, token = http.StatusUnprocessableEntity, "workflow_not_defined"
	case errors.Is(err, workflow.ErrNoActiveStep):
		status, token = http.StatusConflict, "no_active_step"
	case errors.Is(err, service.ErrConflict):
		status, token = http.StatusConflict, "conflict"
	default:
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		status, token = http.StatusInternalServerError, "internal_error"
	}

	c.JSON(status, gin.H{"error": token})
}

// userResponse is the API view of a user.
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

func toUserResponse(u *entity.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
	}
}

// stepResponse is the API view of the currently pending step.
type stepResponse struct {
	Role  string `json:"role"`
	Index int    `json:"index"`
}

// requestResponse is the API view of a payment request, including the
// derived current step so clients never re-implement the log projection.
type requestResponse struct {
	ID          int64  `json:"id"`
	Serial      string `json:"serial,omitempty"`
	DateJalali  string `json:"date_jalali,omitempty"`
	Scope       string `json:"scope"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Amount         int64  `json:"amount"`
	CashAmount     *int64 `json:"cash_amount,omitempty"`
	CashDateJalali string `json:"cash_date_jalali,omitempty"`
	CreditAmount   *int64 `json:"credit_amount,omitempty"`
	CreditPay      string `json:"credit_pay,omitempty"`

	BeneficiaryName string `json:"beneficiary_name,omitempty"`
	BankInfo        string `json:"bank_info,omitempty"`

	DocID         string `json:"doc_id,omitempty"`
	DocOther      string `json:"doc_other,omitempty"`
	DocNumber     string `json:"doc_number,omitempty"`
	DocDateJalali string `json:"doc_date_jalali,omitempty"`

	CurrencyTypeID   *int64 `json:"currency_type_id,omitempty"`
	CurrencySourceID *int64 `json:"currency_source_id,omitempty"`
	ProjectID        *int64 `json:"project_id,omitempty"`
	BudgetCode       string `json:"budget_code,omitempty"`

	Attachments json.RawMessage `json:"attachments,omitempty"`

	Status      string        `json:"status"`
	CurrentStep *stepResponse `json:"current_step,omitempty"`
	History     interface{}   `json:"history"`
	CreatedByID int64         `json:"created_by_id"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

func toRequestResponse(req *entity.PaymentRequest) requestResponse {
	resp := requestResponse{
		ID:          req.ID,
		Serial:      req.Serial,
		DateJalali:  req.DateJalali,
		Scope:       req.Scope.String(),
		Title:       req.Title,
		Description: req.Description,

		Amount:         req.Amount,
		CashAmount:     req.CashAmount,
		CashDateJalali: req.CashDateJalali,
		CreditAmount:   req.CreditAmount,
		CreditPay:      req.CreditPay,

		BeneficiaryName: req.BeneficiaryName,
		BankInfo:        req.BankInfo,

		DocID:         req.DocID,
		DocOther:      req.DocOther,
		DocNumber:     req.DocNumber,
		DocDateJalali: req.DocDateJalali,

		CurrencyTypeID:   req.CurrencyTypeID,
		CurrencySourceID: req.CurrencySourceID,
		ProjectID:        req.ProjectID,
		BudgetCode:       req.BudgetCode,

		Status:      req.Status.String(),
		History:     req.History,
		CreatedByID: req.CreatedByID,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   req.UpdatedAt.Format(time.RFC3339),
	}
	if req.Attachments != "" {
		resp.Attachments = json.RawMessage(req.Attachments)
	}
	if step, ok := req.CurrentStep(); ok {
		resp.CurrentStep = &stepResponse{Role: step.Role.String(), Index: step.Index}
	}
	return resp
}
