package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"claims_portal_backend/internal/auth/permissions"
	"claims_portal_backend/internal/claims/domain"
	"claims_portal_backend/internal/claims/repository"
	"claims_portal_backend/internal/claims/repository/repositorytest"
	"claims_portal_backend/internal/claims/workflow"
	"claims_portal_backend/internal/claims/workflow/workflowtest"
	"claims_portal_backend/internal/events"
	"claims_portal_backend/platform/apperr"
	"claims_portal_backend/platform/logger"

	"github.com/shopspring/decimal"
)

var start = time.Date(2025, time.April, 7, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *repositorytest.Store
	repo   *repository.Repository
	engine *workflow.Engine
	bus    *events.InMemoryBus
	clock  *workflowtest.Clock

	mu      sync.Mutex
	changes []events.ClaimChanged

	declarant, other, manager, expert, medic, validator, accountant, admin workflowtest.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("test")
	registry := permissions.MustLoad(permissions.ModeFull)
	f := &fixture{
		store: repositorytest.New(),
		bus:   events.NewInMemoryBus(log),
		clock: workflowtest.NewClock(start),
	}
	dir := workflowtest.NewDirectory()
	actor := func(name, role string) workflowtest.Actor {
		u := f.store.AddUser(name, role)
		dir.Add(u)
		return workflowtest.NewActor(u, registry)
	}
	f.declarant = actor("u1", permissions.RoleAssure)
	f.other = actor("u2", permissions.RoleAssure)
	f.manager = actor("gestion", permissions.RoleGestionnaire)
	f.expert = actor("expert", permissions.RoleExpert)
	f.medic = actor("medecin", permissions.RoleMedecinExpert)
	f.validator = actor("resp", permissions.RoleResponsable)
	f.accountant = actor("compta", permissions.RoleComptabilite)
	f.admin = actor("admin", permissions.RoleAdmin)

	f.repo = repository.New(f.store, log).WithClock(f.clock.Now)
	f.engine = workflow.New(f.repo, dir, f.bus, log).WithClock(f.clock.Now)
	f.bus.Subscribe(events.ClaimChangedName, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.changes = append(f.changes, e.(events.ClaimChanged))
		return nil
	}))
	return f
}

func (f *fixture) create(t *testing.T, typ domain.Type) domain.Claim {
	t.Helper()
	c, err := f.engine.Create(context.Background(), f.declarant, workflow.CreateInput{
		PolicyNumber: "POL-AUTO-12345",
		Type:         typ,
		IncidentDate: start.Add(-48 * time.Hour),
		Location:     "Paris",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.clock.Advance(time.Minute)
	return c
}

func (f *fixture) published() []events.ClaimChanged {
	f.bus.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.ClaimChanged(nil), f.changes...)
}

// advance drives the claim through every step up to, but not including, stop.
// stop itself is left in progress.
func (f *fixture) advance(t *testing.T, number string, stop domain.StepID) domain.Claim {
	t.Helper()
	ctx := context.Background()
	var c domain.Claim
	var err error
	for _, id := range domain.StepIDs() {
		if id != domain.StepDeclaration {
			if c, err = f.engine.StartStep(ctx, f.admin, number, id); err != nil {
				t.Fatalf("start %s: %v", id, err)
			}
		}
		if id == stop {
			return c
		}
		if c, err = f.engine.CompleteStep(ctx, f.admin, number, id); err != nil {
			t.Fatalf("complete %s: %v", id, err)
		}
		f.clock.Advance(time.Hour)
	}
	return c
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("expected error kind %v, got %v", kind, err)
	}
}

func TestCreateClaim(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)

	if c.Status != domain.StatusOuvert || c.CurrentStepID != domain.StepDeclaration {
		t.Fatalf("unexpected state %s/%s", c.Status, c.CurrentStepID)
	}
	if c.Steps[0].Status != domain.StepInProgress || c.Steps[0].StartedAt == nil {
		t.Fatalf("declaration should be in progress: %+v", c.Steps[0])
	}
	for _, s := range c.Steps[1:] {
		if s.Status != domain.StepPending {
			t.Fatalf("step %s should be pending, got %s", s.ID, s.Status)
		}
	}
	if len(c.Events) != 1 || c.Events[0].Type != domain.EventCreation {
		t.Fatalf("expected one creation event, got %+v", c.Events)
	}
	if c.Declarant.ID != f.declarant.UserID() || c.PolicyNumber != "POL-AUTO-12345" {
		t.Fatalf("unexpected declarant or policy: %+v", c)
	}

	changes := f.published()
	if len(changes) != 1 || changes[0].Operation != workflow.OpCreate || changes[0].Audience.DeclarantID != f.declarant.UserID() {
		t.Fatalf("expected one create notification, got %+v", changes)
	}
}

func TestCreateGatingAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := workflow.CreateInput{PolicyNumber: "POL-1", Type: domain.TypeVie, IncidentDate: start}

	_, err := f.engine.Create(ctx, f.expert, valid)
	assertKind(t, err, apperr.KindForbidden)

	onBehalf := valid
	id := f.other.UserID()
	onBehalf.DeclarantID = &id
	_, err = f.engine.Create(ctx, f.declarant, onBehalf)
	assertKind(t, err, apperr.KindForbidden)

	c, err := f.engine.Create(ctx, f.manager, onBehalf)
	if err != nil || c.Declarant.ID != id {
		t.Fatalf("manager should declare on behalf of u2: %+v (%v)", c.Declarant, err)
	}

	invalid := valid
	invalid.Type = "bateau"
	_, err = f.engine.Create(ctx, f.declarant, invalid)
	assertKind(t, err, apperr.KindValidation)
}

func TestCompleteDeclarationKeepsStatus(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)

	got, err := f.engine.CompleteStep(context.Background(), f.manager, c.Number, domain.StepDeclaration)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	step, _ := got.Step(domain.StepDeclaration)
	if step.Status != domain.StepCompleted || step.CompletedAt == nil {
		t.Fatalf("declaration should be completed: %+v", step)
	}
	next, _ := got.Step(domain.StepInstruction)
	if got.CurrentStepID != domain.StepInstruction || next.Status != domain.StepPending {
		t.Fatalf("instruction should be current and pending, got %s/%s", got.CurrentStepID, next.Status)
	}
	if got.Status != domain.StatusOuvert {
		t.Fatalf("status should stay ouvert, got %s", got.Status)
	}
	if len(got.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(got.Events))
	}
}

func TestUnauthorizedStepIsRefusedWithoutEvent(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	if _, err := f.engine.CompleteStep(ctx, f.manager, c.Number, domain.StepDeclaration); err != nil {
		t.Fatalf("complete: %v", err)
	}
	before := f.store.EventCount(c.Number)

	for _, actor := range []workflowtest.Actor{f.other, f.declarant, f.expert} {
		_, err := f.engine.StartStep(ctx, actor, c.Number, domain.StepInstruction)
		assertKind(t, err, apperr.KindForbidden)
	}

	got, _ := f.repo.GetByID(ctx, c.Number)
	if f.store.EventCount(c.Number) != before || len(got.Events) != before {
		t.Fatalf("denied calls must not append events")
	}
	if step, _ := got.Step(domain.StepInstruction); step.Status != domain.StepPending {
		t.Fatalf("denied call mutated the step: %s", step.Status)
	}
}

func TestPaymentCompletionClosesClaim(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeHabitation)
	ctx := context.Background()
	f.advance(t, c.Number, domain.StepPaiement)

	got, err := f.engine.CompleteStep(ctx, f.accountant, c.Number, domain.StepPaiement)
	if err != nil {
		t.Fatalf("complete paiement: %v", err)
	}
	if got.Status != domain.StatusClos || got.CurrentStepID != domain.StepPaiement {
		t.Fatalf("expected clos at paiement, got %s/%s", got.Status, got.CurrentStepID)
	}
	if got.Events[0].Type != domain.EventClosure {
		t.Fatalf("expected closure event, got %s", got.Events[0].Type)
	}

	for _, id := range domain.StepIDs() {
		_, err := f.engine.StartStep(ctx, f.admin, c.Number, id)
		assertKind(t, err, apperr.KindConflict)
		if !errors.Is(err, workflow.ErrIllegalTransition) {
			t.Fatalf("expected illegal transition for %s, got %v", id, err)
		}
	}
}

func TestStepOperationsSucceedOnce(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	if _, err := f.engine.CompleteStep(ctx, f.manager, c.Number, domain.StepDeclaration); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err := f.engine.CompleteStep(ctx, f.manager, c.Number, domain.StepDeclaration)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("second complete should be illegal, got %v", err)
	}

	if _, err := f.engine.StartStep(ctx, f.manager, c.Number, domain.StepInstruction); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err = f.engine.StartStep(ctx, f.manager, c.Number, domain.StepInstruction)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("second start should be illegal, got %v", err)
	}

	got, _ := f.repo.GetByID(ctx, c.Number)
	if len(got.Events) != 3 {
		t.Fatalf("expected creation plus two step events, got %d", len(got.Events))
	}
}

func TestStepGatesPerStep(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	f.advance(t, c.Number, domain.StepValidation)

	_, err := f.engine.CompleteStep(ctx, f.accountant, c.Number, domain.StepValidation)
	assertKind(t, err, apperr.KindForbidden)
	if _, err := f.engine.CompleteStep(ctx, f.validator, c.Number, domain.StepValidation); err != nil {
		t.Fatalf("responsable should complete validation: %v", err)
	}

	_, err = f.engine.StartStep(ctx, f.validator, c.Number, domain.StepPaiement)
	assertKind(t, err, apperr.KindForbidden)
	if _, err := f.engine.StartStep(ctx, f.accountant, c.Number, domain.StepPaiement); err != nil {
		t.Fatalf("comptabilite should start paiement: %v", err)
	}
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	_, err := f.engine.ChangeStatus(ctx, f.manager, c.Number, domain.StatusEnAnalyse)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("en_analyse before declaration completes should be illegal, got %v", err)
	}

	f.advance(t, c.Number, domain.StepPaiement)

	_, err = f.engine.ChangeStatus(ctx, f.manager, c.Number, domain.StatusApprouve)
	assertKind(t, err, apperr.KindForbidden)

	got, err := f.engine.ChangeStatus(ctx, f.validator, c.Number, domain.StatusApprouve)
	if err != nil || got.Status != domain.StatusApprouve || got.ApprovedAt == nil {
		t.Fatalf("approve: %+v (%v)", got.Status, err)
	}

	_, err = f.engine.ChangeStatus(ctx, f.validator, c.Number, domain.StatusEnAnalyse)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("backward move should be illegal, got %v", err)
	}

	_, err = f.engine.ChangeStatus(ctx, f.accountant, c.Number, domain.StatusPaye)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("paye without approved amount should be illegal, got %v", err)
	}
}

func TestCloseFromPaye(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	f.advance(t, c.Number, domain.StepPaiement)

	_, err := f.engine.ChangeStatus(ctx, f.validator, c.Number, domain.StatusClos)
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("clos before paye should be illegal, got %v", err)
	}

	estimated, approved := decimal.NewFromInt(1000), decimal.NewFromInt(900)
	if _, err := f.engine.RecordAmounts(ctx, f.admin, c.Number, domain.AmountsPatch{Estimated: &estimated, Approved: &approved}); err != nil {
		t.Fatalf("amounts: %v", err)
	}
	if _, err := f.engine.ChangeStatus(ctx, f.validator, c.Number, domain.StatusApprouve); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.engine.ChangeStatus(ctx, f.accountant, c.Number, domain.StatusPaye); err != nil {
		t.Fatalf("pay: %v", err)
	}

	got, err := f.engine.ChangeStatus(ctx, f.validator, c.Number, domain.StatusClos)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	step, _ := got.Step(domain.StepPaiement)
	if got.Status != domain.StatusClos || step.Status != domain.StepCompleted || got.Events[0].Type != domain.EventClosure {
		t.Fatalf("expected a closed claim with paiement completed, got %s/%s/%s", got.Status, step.Status, got.Events[0].Type)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	_, err := f.engine.Reject(ctx, f.manager, c.Number, "fraude")
	assertKind(t, err, apperr.KindForbidden)

	_, err = f.engine.Reject(ctx, f.validator, c.Number, "   ")
	assertKind(t, err, apperr.KindConflict)

	got, err := f.engine.Reject(ctx, f.validator, c.Number, "Contrat résilié")
	if err != nil || got.Status != domain.StatusRejete || got.RejectionReason == nil {
		t.Fatalf("reject: %+v (%v)", got, err)
	}
	if got.Events[0].Type != domain.EventRejection {
		t.Fatalf("expected rejection event, got %s", got.Events[0].Type)
	}

	_, err = f.engine.AddComment(ctx, f.manager, c.Number, "trop tard")
	assertKind(t, err, apperr.KindConflict)
}

func TestRecordAmounts(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	amount := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name      string
		actor     workflowtest.Actor
		patch     domain.AmountsPatch
		wantKind  apperr.Kind
		wantEvent domain.EventType
	}{
		{"nothing given", f.manager, domain.AmountsPatch{}, apperr.KindValidation, ""},
		{"approve before estimate", f.validator, domain.AmountsPatch{Approved: amount("900")}, apperr.KindValidation, ""},
		{"negative estimate", f.manager, domain.AmountsPatch{Estimated: amount("-1")}, apperr.KindValidation, ""},
		{"assure cannot estimate", f.declarant, domain.AmountsPatch{Estimated: amount("1000")}, apperr.KindForbidden, ""},
		{"manager estimates", f.manager, domain.AmountsPatch{Estimated: amount("1000")}, apperr.KindUnknown, domain.EventValidation},
		{"manager cannot approve", f.manager, domain.AmountsPatch{Approved: amount("900")}, apperr.KindForbidden, ""},
		{"responsable approves", f.validator, domain.AmountsPatch{Approved: amount("900")}, apperr.KindUnknown, domain.EventValidation},
		{"override needs validate too", f.accountant, domain.AmountsPatch{Paid: amount("900"), Override: true}, apperr.KindForbidden, ""},
		{"comptabilite pays", f.accountant, domain.AmountsPatch{Paid: amount("900")}, apperr.KindUnknown, domain.EventPayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := f.repo.GetByID(ctx, c.Number)
			got, err := f.engine.RecordAmounts(ctx, tt.actor, c.Number, tt.patch)
			if tt.wantKind != apperr.KindUnknown {
				assertKind(t, err, tt.wantKind)
				after, _ := f.repo.GetByID(ctx, c.Number)
				if len(after.Events) != len(before.Events) {
					t.Fatalf("refused update appended an event")
				}
				return
			}
			if err != nil {
				t.Fatalf("record amounts: %v", err)
			}
			if got.Events[0].Type != tt.wantEvent || len(got.Events) != len(before.Events)+1 {
				t.Fatalf("expected one %s event, got %+v", tt.wantEvent, got.Events[0])
			}
		})
	}

	got, _ := f.repo.GetByID(ctx, c.Number)
	if got.PaidAmount == nil || !got.PaidAmount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("paid amount not stored: %v", got.PaidAmount)
	}
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	auto := f.create(t, domain.TypeAuto)
	health := f.create(t, domain.TypeSante)
	ctx := context.Background()

	_, err := f.engine.Assign(ctx, f.declarant, auto.Number, domain.AssignExpert, f.expert.UserID())
	assertKind(t, err, apperr.KindForbidden)

	got, err := f.engine.Assign(ctx, f.manager, auto.Number, domain.AssignExpert, f.expert.UserID())
	if err != nil || got.Expert == nil || got.Expert.ID != f.expert.UserID() {
		t.Fatalf("assign expert: %+v (%v)", got.Expert, err)
	}
	if got.Events[0].Type != domain.EventAssignment {
		t.Fatalf("expected assignment event, got %s", got.Events[0].Type)
	}

	_, err = f.engine.Assign(ctx, f.manager, auto.Number, domain.AssignMedicalExpert, f.medic.UserID())
	if !errors.Is(err, workflow.ErrIllegalTransition) {
		t.Fatalf("medical expert on auto claim should be illegal, got %v", err)
	}
	if _, err := f.engine.Assign(ctx, f.manager, health.Number, domain.AssignMedicalExpert, f.medic.UserID()); err != nil {
		t.Fatalf("assign medical expert: %v", err)
	}

	_, err = f.engine.Assign(ctx, f.validator, auto.Number, domain.AssignManager, f.manager.UserID())
	assertKind(t, err, apperr.KindForbidden)
}

func TestAttachDocument(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	doc := workflow.DocumentInput{Name: "constat.pdf", Type: "application/pdf", URL: "claims/CLM/constat.pdf"}

	_, err := f.engine.AttachDocument(ctx, f.other, c.Number, doc)
	assertKind(t, err, apperr.KindForbidden)

	got, err := f.engine.AttachDocument(ctx, f.declarant, c.Number, doc)
	if err != nil || len(got.Documents) != 1 || got.Documents[0].UploadedBy.ID != f.declarant.UserID() {
		t.Fatalf("declarant upload: %+v (%v)", got.Documents, err)
	}

	reloaded, err := f.repo.FetchAll(ctx)
	if err != nil || len(reloaded[0].Documents) != 1 {
		t.Fatalf("document not persisted: %v", err)
	}
}

func TestExpertWritesRequireAssignment(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	estimate := decimal.NewFromInt(99999)
	doc := workflow.DocumentInput{Name: "rapport.pdf", Type: "application/pdf", URL: "claims/CLM/rapport.pdf"}

	writes := []struct {
		name string
		run  func() error
	}{
		{"estimate", func() error {
			_, err := f.engine.RecordAmounts(ctx, f.expert, c.Number, domain.AmountsPatch{Estimated: &estimate})
			return err
		}},
		{"document", func() error {
			_, err := f.engine.AttachDocument(ctx, f.expert, c.Number, doc)
			return err
		}},
	}

	for _, w := range writes {
		t.Run("unassigned "+w.name, func(t *testing.T) {
			assertKind(t, w.run(), apperr.KindForbidden)
			got, _ := f.repo.GetByID(ctx, c.Number)
			if len(got.Events) != 1 || got.EstimatedAmount != nil || len(got.Documents) != 0 {
				t.Fatalf("refused write changed the claim: %d events", len(got.Events))
			}
		})
	}

	if _, err := f.engine.Assign(ctx, f.manager, c.Number, domain.AssignExpert, f.expert.UserID()); err != nil {
		t.Fatalf("assign expert: %v", err)
	}
	for _, w := range writes {
		t.Run("assigned "+w.name, func(t *testing.T) {
			if err := w.run(); err != nil {
				t.Fatalf("assigned expert refused: %v", err)
			}
		})
	}

	got, _ := f.repo.GetByID(ctx, c.Number)
	if got.EstimatedAmount == nil || len(got.Documents) != 1 || len(got.Events) != 4 {
		t.Fatalf("expected estimate, document and 4 events, got %+v", got.Events)
	}
}

func TestEventLogGrowsByOnePerSuccess(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	ops := []func() error{
		func() error { _, err := f.engine.StartStep(ctx, f.manager, c.Number, domain.StepInstruction); return err },
		func() error { _, err := f.engine.CompleteStep(ctx, f.other, c.Number, domain.StepDeclaration); return err },
		func() error { _, err := f.engine.CompleteStep(ctx, f.manager, c.Number, domain.StepDeclaration); return err },
		func() error { _, err := f.engine.AddComment(ctx, f.manager, c.Number, "pièces reçues"); return err },
		func() error { _, err := f.engine.ChangeStatus(ctx, f.manager, c.Number, domain.StatusEnAnalyse); return err },
		func() error { _, err := f.engine.ChangeStatus(ctx, f.manager, c.Number, domain.StatusEnAnalyse); return err },
		func() error { _, err := f.engine.Reject(ctx, f.validator, c.Number, ""); return err },
		func() error { _, err := f.engine.StartStep(ctx, f.manager, c.Number, domain.StepInstruction); return err },
	}

	prev := 1
	for i, op := range ops {
		err := op()
		got, _ := f.repo.GetByID(ctx, c.Number)
		want := prev
		if err == nil {
			want++
		}
		if len(got.Events) != want {
			t.Fatalf("op %d: expected %d events, got %d (err %v)", i, want, len(got.Events), err)
		}
		if verr := domain.ValidateSteps(got.Steps, got.CurrentStepID); verr != nil {
			t.Fatalf("op %d broke step ordering: %v", i, verr)
		}
		prev = want
	}
}

func TestConcurrentCommentsAreSerialized(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.AddComment(ctx, f.manager, c.Number, "note")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent comment: %v", err)
		}
	}

	got, _ := f.repo.GetByID(ctx, c.Number)
	if len(got.Events) != n+1 || got.Version != c.Version+n {
		t.Fatalf("expected %d events at version %d, got %d at %d", n+1, c.Version+n, len(got.Events), got.Version)
	}
}

func TestStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()
	if _, err := f.repo.FetchAll(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	f.store.BumpVersion(c.Number)

	_, err := f.engine.AddComment(ctx, f.manager, c.Number, "perdu")
	assertKind(t, err, apperr.KindConflict)
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if f.store.EventCount(c.Number) != 1 {
		t.Fatalf("conflicting write must not be stored")
	}

	if _, err := f.engine.AddComment(ctx, f.manager, c.Number, "retenté"); err != nil {
		t.Fatalf("retry after refresh: %v", err)
	}
}

func TestCommentTextIsSanitized(t *testing.T) {
	f := newFixture(t)
	c := f.create(t, domain.TypeAuto)
	ctx := context.Background()

	got, err := f.engine.AddComment(ctx, f.manager, c.Number, "  <b>Appel</b> de l'assuré  \r\n")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if got.Events[0].Description != "Appel de l'assuré" {
		t.Fatalf("unexpected comment text %q", got.Events[0].Description)
	}

	_, err = f.engine.AddComment(ctx, f.manager, c.Number, "<p> </p>")
	assertKind(t, err, apperr.KindValidation)
}
