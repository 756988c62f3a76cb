package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/domain/event"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
)

// casRetries bounds the optimistic-concurrency retry loop. A losing writer
// re-reads and recomputes; it never overwrites the winner's appended events.
const casRetries = 3

// creationOrder is the deterministic order a creator's own unit kinds are
// tried when no explicit scope is requested.
var creationOrder = []workflow.UnitKind{
	workflow.UnitOffice, workflow.UnitSite, workflow.UnitFinance,
	workflow.UnitCash, workflow.UnitCapex, workflow.UnitProjects,
}

// CreateRequestInput carries the fields a creator submits.
type CreateRequestInput struct {
	Scope       string
	Title       string
	Description string
	Amount      int64

	Serial         string
	DateJalali     string
	CashAmount     *int64
	CashDateJalali string
	CreditAmount   *int64
	CreditPay      string

	BeneficiaryName string
	BankInfo        string

	DocID         string
	DocOther      string
	DocNumber     string
	DocDateJalali string

	CurrencyTypeID   *int64
	CurrencySourceID *int64
	ProjectID        *int64
	BudgetCode       string

	Attachments string

	// UnitOverride is the trusted internal unit-kind hint forwarded to
	// context resolution (non-production contexts).
	UnitOverride string
}

// EditRequestPatch carries creator edits. Nil pointers leave fields alone.
type EditRequestPatch struct {
	Title       *string
	Description *string
	Amount      *int64

	Serial         *string
	DateJalali     *string
	CashAmount     *int64
	CashDateJalali *string
	CreditAmount   *int64
	CreditPay      *string

	BeneficiaryName *string
	BankInfo        *string

	DocID         *string
	DocOther      *string
	DocNumber     *string
	DocDateJalali *string

	CurrencyTypeID   *int64
	CurrencySourceID *int64
	ProjectID        *int64
	BudgetCode       *string

	Attachments *string
}

// ListOptions narrows and shapes a listing call.
type ListOptions struct {
	Scope  string
	Status string
	Text   string

	// View is one of "", "all", "mine", "inbox".
	View string

	UnitOverride string
}

// RequestService is the approval-workflow engine's application surface:
// creation, listing, visibility, transitions, creator edits and deletion.
type RequestService interface {
	Create(ctx context.Context, input CreateRequestInput, actorID int64) (*entity.PaymentRequest, error)
	Get(ctx context.Context, id int64, actorID int64) (*entity.PaymentRequest, error)
	List(ctx context.Context, opts ListOptions, actorID int64) ([]*entity.PaymentRequest, error)
	Transition(ctx context.Context, id int64, action string, note string, actorID int64) (*entity.PaymentRequest, error)
	Edit(ctx context.Context, id int64, patch EditRequestPatch, actorID int64) (*entity.PaymentRequest, error)
	Delete(ctx context.Context, id int64, actorID int64) error
}

type requestServiceImpl struct {
	repo      port.RequestRepository
	resolver  ContextResolver
	txManager port.TransactionManager
	logger    Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	repo port.RequestRepository,
	resolver ContextResolver,
	txManager port.TransactionManager,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		repo:      repo,
		resolver:  resolver,
		txManager: txManager,
		logger:    logger,
	}
}

// Create validates the input, fixes the request's scope, and opens the chain
// at its second link (the requester's own submission is not logged as a
// discrete approval).
func (s *requestServiceImpl) Create(ctx context.Context, input CreateRequestInput, actorID int64) (*entity.PaymentRequest, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}
	if input.Amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	actor, err := s.resolver.Resolve(ctx, actorID, input.UnitOverride)
	if err != nil {
		return nil, fmt.Errorf("resolve actor context: %w", err)
	}

	scope, err := s.resolveScope(input.Scope, actor)
	if err != nil {
		return nil, err
	}

	chain, err := workflow.ChainFor(scope)
	if err != nil {
		return nil, err
	}

	idx := 1
	if len(chain) == 1 {
		idx = 0
	}
	step := workflow.Step{Role: chain[idx], Index: idx}

	req := &entity.PaymentRequest{
		Serial:      input.Serial,
		DateJalali:  input.DateJalali,
		Scope:       scope,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,

		Amount:         input.Amount,
		CashAmount:     input.CashAmount,
		CashDateJalali: input.CashDateJalali,
		CreditAmount:   input.CreditAmount,
		CreditPay:      input.CreditPay,

		BeneficiaryName: input.BeneficiaryName,
		BankInfo:        input.BankInfo,

		DocID:         input.DocID,
		DocOther:      input.DocOther,
		DocNumber:     input.DocNumber,
		DocDateJalali: input.DocDateJalali,

		CurrencyTypeID:   input.CurrencyTypeID,
		CurrencySourceID: input.CurrencySourceID,
		ProjectID:        input.ProjectID,
		BudgetCode:       input.BudgetCode,
		Attachments:      input.Attachments,

		Status:      entity.StatusPending,
		CreatedByID: actorID,
		History: event.Log{
			event.NewCreated(actorID, scope, actor.UnitKinds(), actor.RoleNames),
			event.NewStepSet(scope, step),
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, req)
	})
	if err != nil {
		s.logger.Error("Failed to create payment request", "error", err, "actor_id", actorID)
		return nil, err
	}

	s.logger.Info("Payment request created",
		"id", req.ID, "scope", scope.String(), "step_role", step.Role.String(), "step_index", step.Index)
	return req, nil
}

// resolveScope picks the unit kind the request is filed under: the explicitly
// requested kind when the creator belongs to it (or holds the observer flag),
// else the creator's first resolvable own kind.
func (s *requestServiceImpl) resolveScope(requested string, actor workflow.UserContext) (workflow.UnitKind, error) {
	if token := strings.ToLower(strings.TrimSpace(requested)); token != "" {
		kind := workflow.UnitKind(token)
		if !kind.IsValid() {
			return "", fmt.Errorf("%w: %q", workflow.ErrChainNotDefined, token)
		}
		if actor.InUnit(kind) || actor.IsObserver {
			return kind, nil
		}
	}
	for _, kind := range creationOrder {
		if actor.InUnit(kind) {
			return kind, nil
		}
	}
	return "", ErrUserUnitRequired
}

// Get enforces read visibility: the observer, the creator, and whoever is
// currently authorized on the open step may see the request.
func (s *requestServiceImpl) Get(ctx context.Context, id int64, actorID int64) (*entity.PaymentRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	actor, err := s.resolver.Resolve(ctx, actorID, "")
	if err != nil {
		return nil, err
	}
	if !s.mayView(req, actor) {
		return nil, ErrForbidden
	}
	return req, nil
}

func (s *requestServiceImpl) mayView(req *entity.PaymentRequest, actor workflow.UserContext) bool {
	if actor.IsObserver || req.CreatedByID == actor.UserID {
		return true
	}
	step, ok := req.CurrentStep()
	if !ok {
		return false
	}
	return workflow.CanAct(actor, req.CreatedByID, req.Scope, &step)
}

// List applies the storage filter and then the per-view visibility rules.
func (s *requestServiceImpl) List(ctx context.Context, opts ListOptions, actorID int64) ([]*entity.PaymentRequest, error) {
	actor, err := s.resolver.Resolve(ctx, actorID, opts.UnitOverride)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx, port.RequestFilter{
		Scope:  opts.Scope,
		Status: opts.Status,
		Text:   opts.Text,
		Limit:  500,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*entity.PaymentRequest, 0, len(rows))
	for _, req := range rows {
		if s.inView(req, actor, opts.View) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *requestServiceImpl) inView(req *entity.PaymentRequest, actor workflow.UserContext, view string) bool {
	switch view {
	case "mine":
		return req.CreatedByID == actor.UserID
	case "inbox":
		step, ok := req.CurrentStep()
		if !ok {
			return false
		}
		if actor.IsObserver {
			return req.CreatedByID != actor.UserID
		}
		return workflow.CanAct(actor, req.CreatedByID, req.Scope, &step)
	default:
		return s.mayView(req, actor)
	}
}

// Transition applies approve/reject/return to the request's current step.
// The whole read-derive-append-write cycle is one atomic unit: the update is
// guarded by the row version, and a losing concurrent writer retries from a
// fresh read.
func (s *requestServiceImpl) Transition(ctx context.Context, id int64, action string, note string, actorID int64) (*entity.PaymentRequest, error) {
	var evtType event.Type
	switch action {
	case "approved":
		evtType = event.TypeApproved
	case "rejected":
		evtType = event.TypeRejected
	case "returned":
		evtType = event.TypeReturned
	default:
		return nil, ErrInvalidStatus
	}

	actor, err := s.resolver.Resolve(ctx, actorID, "")
	if err != nil {
		return nil, fmt.Errorf("resolve actor context: %w", err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		req, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, ErrNotFound
		}

		step, ok := req.CurrentStep()
		if !ok {
			return nil, workflow.ErrNoActiveStep
		}

		chain, err := workflow.ChainFor(req.Scope)
		if err != nil {
			return nil, err
		}

		if !workflow.CanAct(actor, req.CreatedByID, req.Scope, &step) {
			return nil, ErrForbidden
		}

		version := req.Version
		req.History = append(req.History, event.NewAction(evtType, actorID, step, note))

		switch evtType {
		case event.TypeApproved:
			next := step.Index + 1
			if next >= len(chain) {
				req.History = append(req.History, event.NewStepClear())
				req.Status = entity.StatusApproved
			} else {
				req.History = append(req.History, event.NewStepSet(req.Scope, workflow.Step{Role: chain[next], Index: next}))
				req.Status = entity.StatusPending
			}
		case event.TypeRejected:
			req.History = append(req.History, event.NewStepClear())
			req.Status = entity.StatusRejected
		case event.TypeReturned:
			req.History = append(req.History, event.NewStepSet(req.Scope, workflow.Step{Role: workflow.RoleRequester, Index: 0}))
			req.Status = entity.StatusReturned
		}
		req.UpdatedAt = time.Now().UTC()

		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.repo.Update(txCtx, req, version)
		})
		if err == nil {
			s.logger.Info("Payment request transitioned",
				"id", id, "action", action, "actor_id", actorID, "status", req.Status.String())
			return req, nil
		}
		if errors.Is(err, port.ErrVersionConflict) {
			s.logger.Info("Concurrent update, retrying", "id", id, "attempt", attempt+1)
			continue
		}
		s.logger.Error("Failed to persist transition", "error", err, "id", id)
		return nil, err
	}

	return nil, ErrConflict
}

// Edit is outside the approval chain: creator-only, any workflow state. It
// appends an edited audit event but touches neither step markers nor status.
func (s *requestServiceImpl) Edit(ctx context.Context, id int64, patch EditRequestPatch, actorID int64) (*entity.PaymentRequest, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		req, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, ErrNotFound
		}
		if req.CreatedByID != actorID {
			return nil, ErrForbidden
		}

		version := req.Version
		applyPatch(req, patch)
		req.History = append(req.History, event.NewEdited(actorID))
		req.UpdatedAt = time.Now().UTC()

		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.repo.Update(txCtx, req, version)
		})
		if err == nil {
			s.logger.Info("Payment request edited", "id", id, "actor_id", actorID)
			return req, nil
		}
		if errors.Is(err, port.ErrVersionConflict) {
			continue
		}
		return nil, err
	}
	return nil, ErrConflict
}

// Delete is an administrative operation outside workflow scope, restricted to
// the creator.
func (s *requestServiceImpl) Delete(ctx context.Context, id int64, actorID int64) error {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrNotFound
	}
	if req.CreatedByID != actorID {
		return ErrForbidden
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			// A concurrent delete got there first.
			return ErrNotFound
		}
		s.logger.Error("Failed to delete payment request", "error", err, "id", id)
		return err
	}
	s.logger.Info("Payment request deleted", "id", id, "actor_id", actorID)
	return nil
}

func applyPatch(req *entity.PaymentRequest, patch EditRequestPatch) {
	if patch.Title != nil {
		req.Title = *patch.Title
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.Amount != nil {
		req.Amount = *patch.Amount
	}
	if patch.Serial != nil {
		req.Serial = *patch.Serial
	}
	if patch.DateJalali != nil {
		req.DateJalali = *patch.DateJalali
	}
	if patch.CashAmount != nil {
		req.CashAmount = patch.CashAmount
	}
	if patch.CashDateJalali != nil {
		req.CashDateJalali = *patch.CashDateJalali
	}
	if patch.CreditAmount != nil {
		req.CreditAmount = patch.CreditAmount
	}
	if patch.CreditPay != nil {
		req.CreditPay = *patch.CreditPay
	}
	if patch.BeneficiaryName != nil {
		req.BeneficiaryName = *patch.BeneficiaryName
	}
	if patch.BankInfo != nil {
		req.BankInfo = *patch.BankInfo
	}
	if patch.DocID != nil {
		req.DocID = *patch.DocID
	}
	if patch.DocOther != nil {
		req.DocOther = *patch.DocOther
	}
	if patch.DocNumber != nil {
		req.DocNumber = *patch.DocNumber
	}
	if patch.DocDateJalali != nil {
		req.DocDateJalali = *patch.DocDateJalali
	}
	if patch.CurrencyTypeID != nil {
		req.CurrencyTypeID = patch.CurrencyTypeID
	}
	if patch.CurrencySourceID != nil {
		req.CurrencySourceID = patch.CurrencySourceID
	}
	if patch.ProjectID != nil {
		req.ProjectID = patch.ProjectID
	}
	if patch.BudgetCode != nil {
		req.BudgetCode = *patch.BudgetCode
	}
	if patch.Attachments != nil {
		req.Attachments = *patch.Attachments
	}
}
