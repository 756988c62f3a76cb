package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ipecgroup/budget-portal/internal/application/port"
	"github.com/ipecgroup/budget-portal/internal/domain/entity"
	"github.com/ipecgroup/budget-portal/internal/domain/event"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
)

// Mock repositories

type mockRequestRepo struct {
	createFunc  func(ctx context.Context, req *entity.PaymentRequest) error
	getByIDFunc func(ctx context.Context, id int64) (*entity.PaymentRequest, error)
	updateFunc  func(ctx context.Context, req *entity.PaymentRequest, expectedVersion int64) error
	deleteFunc  func(ctx context.Context, id int64) error
	listFunc    func(ctx context.Context, filter port.RequestFilter) ([]*entity.PaymentRequest, error)
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.PaymentRequest) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	req.ID = 1
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, req *entity.PaymentRequest, expectedVersion int64) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, req, expectedVersion)
	}
	req.Version = expectedVersion + 1
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter port.RequestFilter) ([]*entity.PaymentRequest, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*entity.PaymentRequest{}, nil
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, userID int64, unitOverride string) (workflow.UserContext, error)
}

func (m *mockResolver) Resolve(ctx context.Context, userID int64, unitOverride string) (workflow.UserContext, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, userID, unitOverride)
	}
	return workflow.UserContext{
		UserID: userID,
		Units:  map[workflow.UnitKind]bool{},
		Roles:  map[workflow.RoleKey]bool{},
	}, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func userContext(userID int64, roles []workflow.RoleKey, units []workflow.UnitKind) workflow.UserContext {
	uc := workflow.UserContext{
		UserID: userID,
		Units:  map[workflow.UnitKind]bool{},
		Roles:  map[workflow.RoleKey]bool{},
	}
	for _, r := range roles {
		uc.Roles[r] = true
	}
	for _, u := range units {
		uc.Units[u] = true
	}
	return uc
}

func resolverFor(contexts map[int64]workflow.UserContext) *mockResolver {
	return &mockResolver{
		resolveFunc: func(ctx context.Context, userID int64, unitOverride string) (workflow.UserContext, error) {
			if uc, ok := contexts[userID]; ok {
				return uc, nil
			}
			return workflow.UserContext{
				UserID: userID,
				Units:  map[workflow.UnitKind]bool{},
				Roles:  map[workflow.RoleKey]bool{},
			}, nil
		},
	}
}

func newTestService(repo *mockRequestRepo, resolver *mockResolver) RequestService {
	return NewRequestService(repo, resolver, &mockTxManager{}, &mockLogger{})
}

// storeOf wires a mockRequestRepo to an in-memory row with real CAS
// semantics, so transition sequences run against the same state a sqlite
// row would hold.
func storeOf(req *entity.PaymentRequest) *mockRequestRepo {
	return &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
			if req == nil || req.ID != id {
				return nil, nil
			}
			copied := *req
			copied.History = append(event.Log{}, req.History...)
			return &copied, nil
		},
		updateFunc: func(ctx context.Context, updated *entity.PaymentRequest, expectedVersion int64) error {
			if req.Version != expectedVersion {
				return port.ErrVersionConflict
			}
			*req = *updated
			req.Version = expectedVersion + 1
			return nil
		},
	}
}

func pendingRequest(id, creatorID int64, scope workflow.UnitKind, step workflow.Step) *entity.PaymentRequest {
	return &entity.PaymentRequest{
		ID:          id,
		Scope:       scope,
		Title:       "خرید ملزومات",
		Amount:      1_500_000,
		Status:      entity.StatusPending,
		CreatedByID: creatorID,
		History: event.Log{
			event.NewCreated(creatorID, scope, nil, nil),
			event.NewStepSet(scope, step),
		},
	}
}

func TestRequestService_Create(t *testing.T) {
	creator := userContext(1, []workflow.RoleKey{workflow.RoleRequester}, []workflow.UnitKind{workflow.UnitSite})

	tests := []struct {
		name      string
		input     CreateRequestInput
		actor     workflow.UserContext
		wantErr   error
		wantScope workflow.UnitKind
		wantStep  workflow.Step
	}{
		{
			name:      "site creator opens at project control",
			input:     CreateRequestInput{Title: "خرید سیمان", Amount: 2_000_000},
			actor:     creator,
			wantScope: workflow.UnitSite,
			wantStep:  workflow.Step{Role: workflow.RoleProjectControl, Index: 1},
		},
		{
			name:      "cash scope opens directly at payment order",
			input:     CreateRequestInput{Scope: "cash", Title: "شارژ تنخواه", Amount: 500_000},
			actor:     userContext(1, nil, []workflow.UnitKind{workflow.UnitCash}),
			wantScope: workflow.UnitCash,
			wantStep:  workflow.Step{Role: workflow.RolePaymentOrder, Index: 1},
		},
		{
			name:      "explicit scope outside own units falls back to own unit",
			input:     CreateRequestInput{Scope: "finance", Title: "خرید سیمان", Amount: 2_000_000},
			actor:     creator,
			wantScope: workflow.UnitSite,
			wantStep:  workflow.Step{Role: workflow.RoleProjectControl, Index: 1},
		},
		{
			name:  "observer may file under any explicit scope",
			input: CreateRequestInput{Scope: "capex", Title: "خرید تجهیزات", Amount: 10_000_000},
			actor: func() workflow.UserContext {
				uc := userContext(9, nil, nil)
				uc.IsObserver = true
				return uc
			}(),
			wantScope: workflow.UnitCapex,
			wantStep:  workflow.Step{Role: workflow.RoleProjectControl, Index: 1},
		},
		{
			name:    "blank title is rejected",
			input:   CreateRequestInput{Title: "   ", Amount: 1000},
			actor:   creator,
			wantErr: ErrTitleRequired,
		},
		{
			name:    "zero amount is rejected",
			input:   CreateRequestInput{Title: "خرید", Amount: 0},
			actor:   creator,
			wantErr: ErrAmountNotPositive,
		},
		{
			name:    "negative amount is rejected",
			input:   CreateRequestInput{Title: "خرید", Amount: -5},
			actor:   creator,
			wantErr: ErrAmountNotPositive,
		},
		{
			name:    "creator without any unit is rejected",
			input:   CreateRequestInput{Title: "خرید", Amount: 1000},
			actor:   userContext(1, []workflow.RoleKey{workflow.RoleRequester}, nil),
			wantErr: ErrUserUnitRequired,
		},
		{
			name:    "invalid explicit scope is rejected",
			input:   CreateRequestInput{Scope: "treasury", Title: "خرید", Amount: 1000},
			actor:   creator,
			wantErr: workflow.ErrChainNotDefined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRequestRepo{}
			resolver := resolverFor(map[int64]workflow.UserContext{tt.actor.UserID: tt.actor})
			svc := newTestService(repo, resolver)

			req, err := svc.Create(context.Background(), tt.input, tt.actor.UserID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			if req.Scope != tt.wantScope {
				t.Errorf("Create() scope = %v, want %v", req.Scope, tt.wantScope)
			}
			if req.Status != entity.StatusPending {
				t.Errorf("Create() status = %v, want pending", req.Status)
			}

			step, ok := req.CurrentStep()
			if !ok {
				t.Fatal("Create() produced no open step")
			}
			if step != tt.wantStep {
				t.Errorf("Create() step = %+v, want %+v", step, tt.wantStep)
			}

			if len(req.History) != 2 {
				t.Fatalf("Create() history length = %d, want 2", len(req.History))
			}
			if req.History[0].Type != event.TypeCreated {
				t.Errorf("Create() first event = %v, want created", req.History[0].Type)
			}
			if req.History[1].Type != event.TypeStepSet {
				t.Errorf("Create() second event = %v, want step_set", req.History[1].Type)
			}
		})
	}
}

func TestRequestService_Create_RecordsScopeAndUserUnits(t *testing.T) {
	// An observer from the office unit files under capex: the creation entry
	// must keep both the enforced scope and the submitter's own unit kinds.
	actor := userContext(9, nil, []workflow.UnitKind{workflow.UnitOffice})
	actor.IsObserver = true
	resolver := resolverFor(map[int64]workflow.UserContext{9: actor})
	svc := newTestService(&mockRequestRepo{}, resolver)

	req, err := svc.Create(context.Background(),
		CreateRequestInput{Scope: "capex", Title: "خرید تجهیزات", Amount: 10_000_000}, 9)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	created := req.History[0]
	if created.Unit != workflow.UnitCapex {
		t.Errorf("created event unit = %v, want capex", created.Unit)
	}
	if len(created.UserUnits) != 1 || created.UserUnits[0] != workflow.UnitOffice {
		t.Errorf("created event user units = %v, want [office]", created.UserUnits)
	}
}

func TestRequestService_Transition_CashChainToApproval(t *testing.T) {
	req := pendingRequest(10, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	repo := storeOf(req)
	resolver := resolverFor(map[int64]workflow.UserContext{
		4: userContext(4, []workflow.RoleKey{workflow.RolePaymentOrder}, nil),
	})
	svc := newTestService(repo, resolver)

	got, err := svc.Transition(context.Background(), 10, "approved", "", 4)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if got.Status != entity.StatusApproved {
		t.Errorf("status = %v, want approved", got.Status)
	}
	if _, ok := got.CurrentStep(); ok {
		t.Error("approved request still has an open step")
	}

	last := got.History[len(got.History)-1]
	if last.Type != event.TypeStepClear {
		t.Errorf("last event = %v, want step_clear", last.Type)
	}
}

func TestRequestService_Transition_ProjectsChainFullRun(t *testing.T) {
	req := pendingRequest(11, 1, workflow.UnitProjects, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	repo := storeOf(req)
	resolver := resolverFor(map[int64]workflow.UserContext{
		2: userContext(2, []workflow.RoleKey{workflow.RoleProjectControl}, []workflow.UnitKind{workflow.UnitProjects}),
		3: userContext(3, []workflow.RoleKey{workflow.RoleProjectManager}, []workflow.UnitKind{workflow.UnitProjects}),
		4: userContext(4, []workflow.RoleKey{workflow.RoleAccounting}, []workflow.UnitKind{workflow.UnitFinance}),
		5: userContext(5, []workflow.RoleKey{workflow.RoleFinanceManager}, []workflow.UnitKind{workflow.UnitFinance}),
		6: userContext(6, []workflow.RoleKey{workflow.RolePaymentOrder}, nil),
	})
	svc := newTestService(repo, resolver)

	approvers := []struct {
		actorID  int64
		nextRole workflow.RoleKey
	}{
		{2, workflow.RoleProjectManager},
		{3, workflow.RoleAccounting},
		{4, workflow.RoleFinanceManager},
		{5, workflow.RolePaymentOrder},
	}

	for _, a := range approvers {
		got, err := svc.Transition(context.Background(), 11, "approved", "", a.actorID)
		if err != nil {
			t.Fatalf("Transition() by %d error = %v", a.actorID, err)
		}
		step, ok := got.CurrentStep()
		if !ok {
			t.Fatalf("step closed early after actor %d", a.actorID)
		}
		if step.Role != a.nextRole {
			t.Fatalf("after actor %d step role = %v, want %v", a.actorID, step.Role, a.nextRole)
		}
		if got.Status != entity.StatusPending {
			t.Fatalf("after actor %d status = %v, want pending", a.actorID, got.Status)
		}
	}

	got, err := svc.Transition(context.Background(), 11, "approved", "", 6)
	if err != nil {
		t.Fatalf("final Transition() error = %v", err)
	}
	if got.Status != entity.StatusApproved {
		t.Errorf("final status = %v, want approved", got.Status)
	}

	// The chain is closed; one more approval must bounce.
	if _, err := svc.Transition(context.Background(), 11, "approved", "", 6); !errors.Is(err, workflow.ErrNoActiveStep) {
		t.Errorf("extra approval error = %v, want no active step", err)
	}
}

func TestRequestService_Transition_ReturnAndResubmit(t *testing.T) {
	req := pendingRequest(12, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	repo := storeOf(req)
	resolver := resolverFor(map[int64]workflow.UserContext{
		1: userContext(1, []workflow.RoleKey{workflow.RoleRequester}, []workflow.UnitKind{workflow.UnitSite}),
		2: userContext(2, []workflow.RoleKey{workflow.RoleProjectControl}, []workflow.UnitKind{workflow.UnitSite}),
	})
	svc := newTestService(repo, resolver)

	got, err := svc.Transition(context.Background(), 12, "returned", "مدارک ناقص است", 2)
	if err != nil {
		t.Fatalf("return Transition() error = %v", err)
	}
	if got.Status != entity.StatusReturned {
		t.Errorf("status = %v, want returned", got.Status)
	}
	step, ok := got.CurrentStep()
	if !ok || step.Role != workflow.RoleRequester || step.Index != 0 {
		t.Fatalf("step after return = %+v ok=%v, want requester index 0", step, ok)
	}

	// Only the creator may act on the requester step.
	if _, err := svc.Transition(context.Background(), 12, "approved", "", 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-creator on requester step error = %v, want forbidden", err)
	}

	got, err = svc.Transition(context.Background(), 12, "approved", "", 1)
	if err != nil {
		t.Fatalf("resubmit Transition() error = %v", err)
	}
	step, ok = got.CurrentStep()
	if !ok || step.Role != workflow.RoleProjectControl || step.Index != 1 {
		t.Fatalf("step after resubmit = %+v ok=%v, want project_control index 1", step, ok)
	}
	if got.Status != entity.StatusPending {
		t.Errorf("status after resubmit = %v, want pending", got.Status)
	}
}

func TestRequestService_Transition_Reject(t *testing.T) {
	req := pendingRequest(13, 1, workflow.UnitOffice, workflow.Step{Role: workflow.RoleAccounting, Index: 1})
	repo := storeOf(req)
	resolver := resolverFor(map[int64]workflow.UserContext{
		4: userContext(4, []workflow.RoleKey{workflow.RoleAccounting}, []workflow.UnitKind{workflow.UnitFinance}),
	})
	svc := newTestService(repo, resolver)

	got, err := svc.Transition(context.Background(), 13, "rejected", "خارج از بودجه", 4)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if got.Status != entity.StatusRejected {
		t.Errorf("status = %v, want rejected", got.Status)
	}
	if _, ok := got.CurrentStep(); ok {
		t.Error("rejected request still has an open step")
	}

	// Terminal: no further action possible.
	if _, err := svc.Transition(context.Background(), 13, "approved", "", 4); !errors.Is(err, workflow.ErrNoActiveStep) {
		t.Errorf("transition on closed chain error = %v, want no active step", err)
	}
}

func TestRequestService_Transition_ForbiddenLeavesHistoryUntouched(t *testing.T) {
	req := pendingRequest(14, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	before := len(req.History)
	repo := storeOf(req)
	resolver := resolverFor(map[int64]workflow.UserContext{
		// Right role, wrong unit.
		8: userContext(8, []workflow.RoleKey{workflow.RoleProjectControl}, []workflow.UnitKind{workflow.UnitOffice}),
	})
	svc := newTestService(repo, resolver)

	if _, err := svc.Transition(context.Background(), 14, "approved", "", 8); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Transition() error = %v, want forbidden", err)
	}

	if len(req.History) != before {
		t.Errorf("history length changed on forbidden action: %d -> %d", before, len(req.History))
	}
	if req.Version != 0 {
		t.Errorf("version changed on forbidden action: %d", req.Version)
	}
}

func TestRequestService_Transition_ObserverCannotApprove(t *testing.T) {
	req := pendingRequest(15, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	repo := storeOf(req)
	observer := userContext(9, nil, nil)
	observer.IsObserver = true
	resolver := resolverFor(map[int64]workflow.UserContext{9: observer})
	svc := newTestService(repo, resolver)

	if _, err := svc.Transition(context.Background(), 15, "approved", "", 9); !errors.Is(err, ErrForbidden) {
		t.Errorf("observer Transition() error = %v, want forbidden", err)
	}
}

func TestRequestService_Transition_InvalidAction(t *testing.T) {
	svc := newTestService(&mockRequestRepo{}, &mockResolver{})

	if _, err := svc.Transition(context.Background(), 1, "archived", "", 1); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Transition() error = %v, want invalid status", err)
	}
}

func TestRequestService_Transition_NotFound(t *testing.T) {
	repo := &mockRequestRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
			return nil, nil
		},
	}
	resolver := resolverFor(map[int64]workflow.UserContext{
		4: userContext(4, []workflow.RoleKey{workflow.RolePaymentOrder}, nil),
	})
	svc := newTestService(repo, resolver)

	if _, err := svc.Transition(context.Background(), 404, "approved", "", 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("Transition() error = %v, want not found", err)
	}
}

func TestRequestService_Transition_RetriesOnVersionConflict(t *testing.T) {
	req := pendingRequest(16, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	store := storeOf(req)

	conflicts := 0
	repo := &mockRequestRepo{
		getByIDFunc: store.getByIDFunc,
		updateFunc: func(ctx context.Context, updated *entity.PaymentRequest, expectedVersion int64) error {
			if conflicts < 2 {
				conflicts++
				return port.ErrVersionConflict
			}
			return store.updateFunc(ctx, updated, expectedVersion)
		},
	}
	resolver := resolverFor(map[int64]workflow.UserContext{
		4: userContext(4, []workflow.RoleKey{workflow.RolePaymentOrder}, nil),
	})
	svc := newTestService(repo, resolver)

	got, err := svc.Transition(context.Background(), 16, "approved", "", 4)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if conflicts != 2 {
		t.Errorf("conflicts = %d, want 2", conflicts)
	}
	if got.Status != entity.StatusApproved {
		t.Errorf("status = %v, want approved", got.Status)
	}
}

func TestRequestService_Transition_ConflictBudgetExhausted(t *testing.T) {
	req := pendingRequest(17, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	store := storeOf(req)

	repo := &mockRequestRepo{
		getByIDFunc: store.getByIDFunc,
		updateFunc: func(ctx context.Context, updated *entity.PaymentRequest, expectedVersion int64) error {
			return port.ErrVersionConflict
		},
	}
	resolver := resolverFor(map[int64]workflow.UserContext{
		4: userContext(4, []workflow.RoleKey{workflow.RolePaymentOrder}, nil),
	})
	svc := newTestService(repo, resolver)

	if _, err := svc.Transition(context.Background(), 17, "approved", "", 4); !errors.Is(err, ErrConflict) {
		t.Errorf("Transition() error = %v, want conflict", err)
	}
}

func TestRequestService_Get_Visibility(t *testing.T) {
	req := pendingRequest(20, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	repo := storeOf(req)

	observer := userContext(9, nil, nil)
	observer.IsObserver = true

	resolver := resolverFor(map[int64]workflow.UserContext{
		1: userContext(1, []workflow.RoleKey{workflow.RoleRequester}, []workflow.UnitKind{workflow.UnitSite}),
		2: userContext(2, []workflow.RoleKey{workflow.RoleProjectControl}, []workflow.UnitKind{workflow.UnitSite}),
		3: userContext(3, []workflow.RoleKey{workflow.RoleAccounting}, []workflow.UnitKind{workflow.UnitFinance}),
		9: observer,
	})
	svc := newTestService(repo, resolver)

	tests := []struct {
		name    string
		actorID int64
		wantErr error
	}{
		{"creator sees own request", 1, nil},
		{"current step approver sees it", 2, nil},
		{"observer sees everything", 9, nil},
		{"later chain role does not see it yet", 3, ErrForbidden},
		{"stranger is denied", 77, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(context.Background(), 20, tt.actorID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Get() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestService_List_Views(t *testing.T) {
	own := pendingRequest(30, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	other := pendingRequest(31, 2, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	closed := pendingRequest(32, 2, workflow.UnitSite, workflow.Step{Role: workflow.RolePaymentOrder, Index: 4})
	closed.History = append(closed.History, event.NewStepClear())
	closed.Status = entity.StatusApproved

	repo := &mockRequestRepo{
		listFunc: func(ctx context.Context, filter port.RequestFilter) ([]*entity.PaymentRequest, error) {
			return []*entity.PaymentRequest{own, other, closed}, nil
		},
	}

	control := userContext(5, []workflow.RoleKey{workflow.RoleProjectControl}, []workflow.UnitKind{workflow.UnitSite})
	observer := userContext(9, nil, nil)
	observer.IsObserver = true

	resolver := resolverFor(map[int64]workflow.UserContext{
		1: userContext(1, []workflow.RoleKey{workflow.RoleRequester}, []workflow.UnitKind{workflow.UnitSite}),
		5: control,
		9: observer,
	})
	svc := newTestService(repo, resolver)

	tests := []struct {
		name    string
		actorID int64
		view    string
		wantIDs []int64
	}{
		{"mine returns only own requests", 1, "mine", []int64{30}},
		{"inbox shows requests awaiting the actor", 5, "inbox", []int64{30, 31}},
		{"inbox excludes closed chains", 5, "inbox", []int64{30, 31}},
		{"observer inbox shows open requests of others", 9, "inbox", []int64{30, 31}},
		{"observer default view shows everything", 9, "", []int64{30, 31, 32}},
		{"default view for creator shows own plus actionable", 1, "", []int64{30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := svc.List(context.Background(), ListOptions{View: tt.view}, tt.actorID)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			ids := make([]int64, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("List() ids = %v, want %v", ids, tt.wantIDs)
			}
			for i := range ids {
				if ids[i] != tt.wantIDs[i] {
					t.Fatalf("List() ids = %v, want %v", ids, tt.wantIDs)
				}
			}
		})
	}
}

func TestRequestService_Edit(t *testing.T) {
	req := pendingRequest(40, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	repo := storeOf(req)
	svc := newTestService(repo, &mockResolver{})

	newTitle := "خرید آرماتور"
	newAmount := int64(3_000_000)

	got, err := svc.Edit(context.Background(), 40, EditRequestPatch{Title: &newTitle, Amount: &newAmount}, 1)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	if got.Title != newTitle {
		t.Errorf("title = %q, want %q", got.Title, newTitle)
	}
	if got.Amount != newAmount {
		t.Errorf("amount = %d, want %d", got.Amount, newAmount)
	}

	// Edit never disturbs the open step or the status.
	step, ok := got.CurrentStep()
	if !ok || step.Role != workflow.RoleProjectControl {
		t.Errorf("step after edit = %+v ok=%v", step, ok)
	}
	if got.Status != entity.StatusPending {
		t.Errorf("status after edit = %v, want pending", got.Status)
	}

	last := got.History[len(got.History)-1]
	if last.Type != event.TypeEdited {
		t.Errorf("last event = %v, want edited", last.Type)
	}
}

func TestRequestService_Edit_CreatorOnly(t *testing.T) {
	req := pendingRequest(41, 1, workflow.UnitSite, workflow.Step{Role: workflow.RoleProjectControl, Index: 1})
	repo := storeOf(req)
	svc := newTestService(repo, &mockResolver{})

	title := "تغییر"
	if _, err := svc.Edit(context.Background(), 41, EditRequestPatch{Title: &title}, 2); !errors.Is(err, ErrForbidden) {
		t.Errorf("Edit() by non-creator error = %v, want forbidden", err)
	}
}

func TestRequestService_Delete(t *testing.T) {
	req := pendingRequest(50, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	deleted := false
	repo := storeOf(req)
	repo.deleteFunc = func(ctx context.Context, id int64) error {
		deleted = true
		return nil
	}
	svc := newTestService(repo, &mockResolver{})

	if err := svc.Delete(context.Background(), 50, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Delete() by non-creator error = %v, want forbidden", err)
	}
	if deleted {
		t.Fatal("delete executed for non-creator")
	}

	if err := svc.Delete(context.Background(), 50, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("delete not executed for creator")
	}
}

func TestRequestService_Delete_RaceMapsToNotFound(t *testing.T) {
	// The row passes the read check but vanishes before the delete lands.
	req := pendingRequest(50, 1, workflow.UnitCash, workflow.Step{Role: workflow.RolePaymentOrder, Index: 1})
	repo := storeOf(req)
	repo.deleteFunc = func(ctx context.Context, id int64) error {
		return port.ErrNotFound
	}
	svc := newTestService(repo, &mockResolver{})

	if err := svc.Delete(context.Background(), 50, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want not found", err)
	}
}
