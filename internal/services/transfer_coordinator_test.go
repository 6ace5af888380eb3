package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"testing"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"
	"bridge-backend/internal/types"
	"bridge-backend/internal/utils"

	"gorm.io/gorm"
)

// fakeIntentRepo is an in-memory TransferIntentRepository
type fakeIntentRepo struct {
	mu      sync.Mutex
	intents map[string]*models.TransferIntent
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{intents: make(map[string]*models.TransferIntent)}
}

func (r *fakeIntentRepo) Create(ctx context.Context, intent *models.TransferIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.intents[intent.ID]; exists {
		return fmt.Errorf("duplicate intent %s", intent.ID)
	}
	clone := *intent
	r.intents[intent.ID] = &clone
	return nil
}

func (r *fakeIntentRepo) GetByID(ctx context.Context, id string) (*models.TransferIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, exists := r.intents[id]
	if !exists {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *intent
	return &clone, nil
}

func (r *fakeIntentRepo) FindByAccount(ctx context.Context, account string, page, limit int) ([]*models.TransferIntent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TransferIntent
	for _, intent := range r.intents {
		if intent.Account == account {
			clone := *intent
			out = append(out, &clone)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeIntentRepo) FindInFlight(ctx context.Context) ([]*models.TransferIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TransferIntent
	for _, intent := range r.intents {
		if intent.Status.InFlight() {
			clone := *intent
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeIntentRepo) FindByDepositTxHash(ctx context.Context, chainID int, txHash string) (*models.TransferIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, intent := range r.intents {
		if intent.ChainFrom == chainID && intent.DepositTxHash == txHash {
			clone := *intent
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeIntentRepo) Transition(ctx context.Context, intent *models.TransferIntent, next models.TransferIntentStatus, updates map[string]interface{}) error {
	if !intent.Status.CanTransition(next) {
		return gorm.ErrInvalidTransaction
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.intents[intent.ID]
	if !exists || stored.Status != intent.Status {
		return gorm.ErrRecordNotFound
	}

	stored.Status = next
	applyIntentUpdates(stored, updates)
	intent.Status = next
	return nil
}

func (r *fakeIntentRepo) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.intents[id]
	if !exists {
		return gorm.ErrRecordNotFound
	}
	applyIntentUpdates(stored, updates)
	return nil
}

func (r *fakeIntentRepo) Reactivate(ctx context.Context, intent *models.TransferIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.intents[intent.ID]
	if !exists || stored.Status != models.TransferStatusWithdrawFailed {
		return gorm.ErrRecordNotFound
	}
	stored.Status = models.TransferStatusWithdrawPending
	stored.WithdrawTxHash = ""
	stored.LastError = ""
	intent.Status = models.TransferStatusWithdrawPending
	intent.WithdrawTxHash = ""
	intent.LastError = ""
	return nil
}

func applyIntentUpdates(intent *models.TransferIntent, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "deposit_tx_hash":
			intent.DepositTxHash = value.(string)
		case "withdraw_tx_hash":
			intent.WithdrawTxHash = value.(string)
		case "last_error":
			intent.LastError = value.(string)
		case "deposit_block_number":
			intent.DepositBlockNumber = value.(*uint64)
		case "withdraw_block_number":
			intent.WithdrawBlockNumber = value.(*uint64)
		}
	}
}

// fakeStrandedRepo records stranded transfers in memory
type fakeStrandedRepo struct {
	mu       sync.Mutex
	stranded []*models.StrandedTransfer
}

func (r *fakeStrandedRepo) Create(ctx context.Context, st *models.StrandedTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stranded = append(r.stranded, st)
	return nil
}

func (r *fakeStrandedRepo) GetByID(ctx context.Context, id string) (*models.StrandedTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stranded {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeStrandedRepo) GetByIntentID(ctx context.Context, intentID string) (*models.StrandedTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stranded {
		if st.IntentID == intentID {
			return st, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeStrandedRepo) FindDueForRetry(ctx context.Context, limit int) ([]*models.StrandedTransfer, error) {
	return nil, nil
}

func (r *fakeStrandedRepo) FindUnresolved(ctx context.Context, page, limit int) ([]*models.StrandedTransfer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stranded, int64(len(r.stranded)), nil
}

func (r *fakeStrandedRepo) Save(ctx context.Context, st *models.StrandedTransfer) error {
	return nil
}

func (r *fakeStrandedRepo) RequeueStaleRetrying(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var requeued int64
	for _, st := range r.stranded {
		if st.Status == models.StrandedTransferStatusRetrying && st.UpdatedAt.Before(olderThan) {
			st.Status = models.StrandedTransferStatusPending
			st.NextRetryAt = time.Now()
			requeued++
		}
	}
	return requeued, nil
}

func (r *fakeStrandedRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stranded)
}

// fakeGateway scripts the chain behavior for one test
type fakeGateway struct {
	mu sync.Mutex

	depositErr       error // returned by ConfirmDeposit
	depositSubmitErr error // returned by SubmitDeposit
	releaseErr       error // returned by SubmitRelease
	confirmErr       error // returned by ConfirmRelease

	priorHash string // returned by PriorRelease
	priorErr  error

	onRelease           func(*models.TransferIntent) // observes every SubmitRelease
	confirmDepositWaits bool                         // ConfirmDeposit blocks until ctx is canceled

	releaseCalls  int
	releasedWith  *big.Int
	releaseAmount *big.Int // amount reported by ConfirmRelease, nil = echo submitted
}

func (g *fakeGateway) ConfirmDeposit(ctx context.Context, intent *models.TransferIntent) (*types.DepositReceipt, error) {
	if g.confirmDepositWaits {
		<-ctx.Done()
		return nil, &types.TransientChainError{ChainID: intent.ChainFrom, Op: "wait-receipt", Err: ctx.Err()}
	}
	if g.depositErr != nil {
		return nil, g.depositErr
	}
	amount, _ := new(big.Int).SetString(intent.Amount, 10)
	correlation, _ := utils.CorrelationFromIntentID(intent.ID)
	return &types.DepositReceipt{
		TxHash:      intent.DepositTxHash,
		BlockNumber: 1001,
		Amount:      amount,
		Account:     intent.Account,
		Asset:       intent.AssetFrom,
		Correlation: correlation,
	}, nil
}

func (g *fakeGateway) SubmitDeposit(ctx context.Context, intent *models.TransferIntent) (string, error) {
	if g.depositSubmitErr != nil {
		return "", g.depositSubmitErr
	}
	return "0x" + "d" + intent.ID[:8], nil
}

func (g *fakeGateway) SubmitRelease(ctx context.Context, intent *models.TransferIntent, amount *big.Int) (string, error) {
	if g.onRelease != nil {
		g.onRelease(intent)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseCalls++
	if g.releaseErr != nil {
		return "", g.releaseErr
	}
	g.releasedWith = new(big.Int).Set(amount)
	return "0xrelease" + intent.ID[:8], nil
}

func (g *fakeGateway) PriorRelease(ctx context.Context, intentID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.priorHash, g.priorErr
}

func (g *fakeGateway) ConfirmRelease(ctx context.Context, intent *models.TransferIntent) (*types.WithdrawalReceipt, error) {
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	g.mu.Lock()
	amount := g.releaseAmount
	if amount == nil {
		amount = g.releasedWith
	}
	g.mu.Unlock()
	return &types.WithdrawalReceipt{
		TxHash:      intent.WithdrawTxHash,
		BlockNumber: 2002,
		Amount:      amount,
	}, nil
}

func (g *fakeGateway) releases() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releaseCalls
}

// fakeNotifier records published events
type fakeNotifier struct {
	mu       sync.Mutex
	statuses []models.TransferIntentStatus
	alerts   []string
}

func (n *fakeNotifier) PublishTransferStatus(intent *models.TransferIntent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, intent.Status)
}

func (n *fakeNotifier) PublishStrandedAlert(intent *models.TransferIntent, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, reason)
}

func (n *fakeNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type coordinatorFixture struct {
	coordinator *TransferCoordinator
	repo        *fakeIntentRepo
	stranded    *fakeStrandedRepo
	gateway     *fakeGateway
	notifier    *fakeNotifier
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	fees, err := utils.NewFeeSchedule(&config.BridgeConfig{
		FeeRate:   "0.001",
		MinFee:    "0.014",
		MaxFee:    "0.22",
		MinAmount: "0.05",
		MaxAmount: "1000000",
		Decimals:  18,
	})
	if err != nil {
		t.Fatalf("NewFeeSchedule: %v", err)
	}

	repo := newFakeIntentRepo()
	stranded := &fakeStrandedRepo{}
	gateway := &fakeGateway{}
	notifier := &fakeNotifier{}

	return &coordinatorFixture{
		coordinator: NewTransferCoordinator(repo, stranded, gateway, fees, notifier, nil, 0),
		repo:        repo,
		stranded:    stranded,
		gateway:     gateway,
		notifier:    notifier,
	}
}

func units(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := utils.ParseDecimal(s, 18)
	if err != nil {
		t.Fatalf("ParseDecimal(%q): %v", s, err)
	}
	return v
}

func createParams(amount *big.Int) *CreateTransferParams {
	return &CreateTransferParams{
		Account:   "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		AssetFrom: "0x1111111111111111111111111111111111111111",
		AssetTo:   "0x2222222222222222222222222222222222222222",
		Amount:    amount,
		ChainFrom: 80001,
		ChainTo:   1287,
	}
}

// runTransfer drives one transfer from creation through the deposit attach
// to wherever the scripted gateway lets it go.
func runTransfer(t *testing.T, f *coordinatorFixture, amount *big.Int) *models.TransferIntent {
	t.Helper()
	ctx := context.Background()

	intent, err := f.coordinator.CreateIntent(ctx, createParams(amount))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	intent, err = f.coordinator.AttachDeposit(ctx, intent.ID, "0xdeadbeef00000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("AttachDeposit: %v", err)
	}

	f.coordinator.Advance(ctx, intent)
	return intent
}

func TestTransferCompletesWithProportionalFee(t *testing.T) {
	f := newCoordinatorFixture(t)

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusCompleted {
		t.Fatalf("status = %s, want completed", intent.Status)
	}
	if want := units(t, "99.9"); f.gateway.releasedWith.Cmp(want) != 0 {
		t.Errorf("released %s, want 99.9", utils.FormatDecimal(f.gateway.releasedWith, 18))
	}
	if intent.Fee != units(t, "0.1").String() {
		t.Errorf("fee snapshot = %s, want 0.1 units", intent.Fee)
	}
}

func TestTransferCompletesWithFloorFee(t *testing.T) {
	f := newCoordinatorFixture(t)

	intent := runTransfer(t, f, units(t, "1"))

	if intent.Status != models.TransferStatusCompleted {
		t.Fatalf("status = %s, want completed", intent.Status)
	}
	if want := units(t, "0.986"); f.gateway.releasedWith.Cmp(want) != 0 {
		t.Errorf("released %s, want 0.986", utils.FormatDecimal(f.gateway.releasedWith, 18))
	}
}

func TestTransferCompletesWithCappedFee(t *testing.T) {
	f := newCoordinatorFixture(t)

	intent := runTransfer(t, f, units(t, "1000000"))

	if intent.Status != models.TransferStatusCompleted {
		t.Fatalf("status = %s, want completed", intent.Status)
	}
	if want := units(t, "999999.78"); f.gateway.releasedWith.Cmp(want) != 0 {
		t.Errorf("released %s, want 999999.78", utils.FormatDecimal(f.gateway.releasedWith, 18))
	}
}

func TestDepositRevertNeverReleases(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.depositErr = &types.RevertedTransactionError{ChainID: 80001, TxHash: "0xdead"}

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusDepositFailed {
		t.Fatalf("status = %s, want deposit_failed", intent.Status)
	}
	if f.gateway.releases() != 0 {
		t.Errorf("release was submitted after a failed deposit")
	}
	if f.stranded.count() != 0 {
		t.Errorf("failed deposit must not strand: no funds moved")
	}
}

func TestReleaseRevertStrandsWithAlert(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.releaseErr = &types.RevertedTransactionError{ChainID: 1287, TxHash: "0xbad"}

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusWithdrawFailed {
		t.Fatalf("status = %s, want withdraw_failed", intent.Status)
	}
	if f.stranded.count() != 1 {
		t.Fatalf("stranded records = %d, want 1", f.stranded.count())
	}
	if f.notifier.alertCount() != 1 {
		t.Errorf("operator alerts = %d, want 1", f.notifier.alertCount())
	}

	stranded, err := f.stranded.GetByIntentID(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("stranded record missing: %v", err)
	}
	if stranded.DepositTxHash != intent.DepositTxHash {
		t.Errorf("stranded record lost deposit evidence")
	}
	if stranded.ReleaseAmount != intent.ReleaseAmount {
		t.Errorf("stranded release amount = %s, want %s", stranded.ReleaseAmount, intent.ReleaseAmount)
	}
}

func TestConfirmTimeoutLeavesTransferPending(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.depositErr = types.ErrConfirmTimeout

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusDepositPending {
		t.Fatalf("status = %s, want deposit_pending after timeout", intent.Status)
	}

	// The chain catches up; the resume sweep drives it home.
	f.gateway.depositErr = nil
	f.coordinator.Advance(context.Background(), intent)
	if intent.Status != models.TransferStatusCompleted {
		t.Errorf("status after re-arm = %s, want completed", intent.Status)
	}
}

func TestTransientReleaseErrorIsNotStranding(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.gateway.releaseErr = &types.TransientChainError{ChainID: 1287, Op: "send", Err: errors.New("rpc down")}

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusWithdrawPending {
		t.Fatalf("status = %s, want withdraw_pending", intent.Status)
	}
	if f.stranded.count() != 0 {
		t.Errorf("transient error must not strand")
	}

	f.gateway.releaseErr = nil
	f.coordinator.Advance(context.Background(), intent)
	if intent.Status != models.TransferStatusCompleted {
		t.Errorf("status after retry = %s, want completed", intent.Status)
	}
}

func TestAttachDepositIsIdempotent(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	txHash := "0xdeadbeef00000000000000000000000000000000000000000000000000000001"

	intent, err := f.coordinator.CreateIntent(ctx, createParams(units(t, "100")))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	if _, err := f.coordinator.AttachDeposit(ctx, intent.ID, txHash); err != nil {
		t.Fatalf("AttachDeposit: %v", err)
	}

	// Same hash again is a no-op.
	if _, err := f.coordinator.AttachDeposit(ctx, intent.ID, txHash); err != nil {
		t.Errorf("re-attaching identical hash: %v", err)
	}

	// A different hash for the same intent is a duplicate submission.
	if _, err := f.coordinator.AttachDeposit(ctx, intent.ID, "0xdeadbeef00000000000000000000000000000000000000000000000000000002"); !errors.Is(err, types.ErrDuplicateSubmission) {
		t.Errorf("expected ErrDuplicateSubmission, got %v", err)
	}
}

func TestCreateIntentRejectsBadInput(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateTransferParams)
	}{
		{"zero amount", func(p *CreateTransferParams) { p.Amount = big.NewInt(0) }},
		{"below minimum", func(p *CreateTransferParams) { p.Amount = units(t, "0.04") }},
		{"above maximum", func(p *CreateTransferParams) { p.Amount = units(t, "1000001") }},
		{"bad account", func(p *CreateTransferParams) { p.Account = "bogus" }},
		{"same chain", func(p *CreateTransferParams) { p.ChainTo = p.ChainFrom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := createParams(units(t, "100"))
			tt.mutate(params)
			if _, err := f.coordinator.CreateIntent(ctx, params); err == nil {
				t.Error("expected rejection")
			}
		})
	}

	if f.gateway.releases() != 0 {
		t.Errorf("rejected inputs must not touch the chain")
	}
}

func TestLostReleaseHashWriteNeverPaysTwice(t *testing.T) {
	f := newCoordinatorFixture(t)
	// Release goes out, but confirmation times out so the transfer stays
	// withdraw_pending with the hash stored.
	f.gateway.confirmErr = types.ErrConfirmTimeout

	intent := runTransfer(t, f, units(t, "100"))
	if intent.Status != models.TransferStatusWithdrawPending {
		t.Fatalf("status = %s, want withdraw_pending", intent.Status)
	}
	if f.gateway.releases() != 1 {
		t.Fatalf("releases = %d, want 1", f.gateway.releases())
	}
	submittedHash := intent.WithdrawTxHash

	// A crash loses the intent-side hash write. The durable queue row still
	// carries the hash of the transaction that went out.
	if err := f.repo.UpdateFields(context.Background(), intent.ID, map[string]interface{}{
		"withdraw_tx_hash": "",
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	f.gateway.priorHash = submittedHash
	f.gateway.confirmErr = nil

	reloaded, err := f.repo.GetByID(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	f.coordinator.Advance(context.Background(), reloaded)

	if f.gateway.releases() != 1 {
		t.Fatalf("releases = %d after resume, want 1: resume must adopt the prior submission", f.gateway.releases())
	}
	if reloaded.Status != models.TransferStatusCompleted {
		t.Errorf("status = %s, want completed", reloaded.Status)
	}
	if reloaded.WithdrawTxHash != submittedHash {
		t.Errorf("withdraw hash = %s, want adopted %s", reloaded.WithdrawTxHash, submittedHash)
	}
}

func TestUnknownPriorReleaseBlocksSubmission(t *testing.T) {
	f := newCoordinatorFixture(t)
	// The prior-submission lookup is unavailable: without proof that nothing
	// went out, no release may be submitted.
	f.gateway.priorErr = &types.TransientChainError{Op: "prior-release", Err: errors.New("db down")}

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusWithdrawPending {
		t.Fatalf("status = %s, want withdraw_pending", intent.Status)
	}
	if f.gateway.releases() != 0 {
		t.Errorf("releases = %d, want 0 while the prior submission is unknown", f.gateway.releases())
	}

	f.gateway.priorErr = nil
	f.coordinator.Advance(context.Background(), intent)
	if intent.Status != models.TransferStatusCompleted {
		t.Errorf("status after lookup recovers = %s, want completed", intent.Status)
	}
}

func TestServerDepositDrivesTransfer(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	intent, err := f.coordinator.CreateIntent(ctx, createParams(units(t, "100")))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	intent, err = f.coordinator.SubmitServerDeposit(ctx, intent.ID)
	if err != nil {
		t.Fatalf("SubmitServerDeposit: %v", err)
	}
	if intent.Status != models.TransferStatusDepositPending {
		t.Fatalf("status = %s, want deposit_pending", intent.Status)
	}
	if intent.DepositTxHash == "" {
		t.Fatal("server deposit left no tx hash")
	}

	// A second server deposit for the same intent must be rejected.
	if _, err := f.coordinator.SubmitServerDeposit(ctx, intent.ID); !errors.Is(err, types.ErrDuplicateSubmission) {
		t.Errorf("expected ErrDuplicateSubmission, got %v", err)
	}

	f.coordinator.Advance(ctx, intent)
	if intent.Status != models.TransferStatusCompleted {
		t.Errorf("status = %s, want completed", intent.Status)
	}
}

func TestServerDepositWithoutDepositorKey(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.gateway.depositSubmitErr = &types.AuthorityError{ChainID: 80001, Reason: "no depositor key configured"}

	intent, err := f.coordinator.CreateIntent(ctx, createParams(units(t, "100")))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}

	var authErr *types.AuthorityError
	if _, err := f.coordinator.SubmitServerDeposit(ctx, intent.ID); !errors.As(err, &authErr) {
		t.Fatalf("expected AuthorityError, got %v", err)
	}

	stored, err := f.repo.GetByID(ctx, intent.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.TransferStatusCreated {
		t.Errorf("status = %s, want created after a refused deposit", stored.Status)
	}
}

func TestStopWaitsForAsyncDrivers(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.gateway.confirmDepositWaits = true

	intent, err := f.coordinator.CreateIntent(ctx, createParams(units(t, "100")))
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	intent, err = f.coordinator.AttachDeposit(ctx, intent.ID, "0xdeadbeef00000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("AttachDeposit: %v", err)
	}

	// The driver blocks in the confirmation wait until Stop cancels it. Stop
	// must not return while the driver is still running.
	f.coordinator.AdvanceAsync(intent)
	f.coordinator.Stop()

	stored, err := f.repo.GetByID(ctx, intent.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != models.TransferStatusDepositPending {
		t.Errorf("status = %s, want deposit_pending after canceled wait", stored.Status)
	}
}

func TestReleaseAmountMismatchStrands(t *testing.T) {
	f := newCoordinatorFixture(t)
	// Chain reports a different paid-out amount than deposit minus fee.
	f.gateway.releaseAmount = units(t, "98")

	intent := runTransfer(t, f, units(t, "100"))

	if intent.Status != models.TransferStatusWithdrawFailed {
		t.Fatalf("status = %s, want withdraw_failed on reconciliation mismatch", intent.Status)
	}
	if f.stranded.count() != 1 {
		t.Errorf("reconciliation mismatch must strand")
	}
}
