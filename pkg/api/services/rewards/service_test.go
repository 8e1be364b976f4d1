package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lnbounty/bounty-api/pkg/api/services/escrow"
	"github.com/lnbounty/bounty-api/pkg/api/services/users"
	"github.com/lnbounty/bounty-api/pkg/applog"
	"github.com/lnbounty/bounty-api/pkg/db/dbtest"
	"github.com/lnbounty/bounty-api/pkg/db/models"
	"github.com/lnbounty/bounty-api/pkg/ghapi"
	"github.com/lnbounty/bounty-api/pkg/kv"
	"github.com/lnbounty/bounty-api/pkg/lnbits"
	"github.com/uptrace/bun"
)

// fakeGateway is an in-memory wallet provider. Balances move
// atomically under a single mutex so concurrent tests observe
// consistent totals.
type fakeGateway struct {
	mu      sync.Mutex
	seq     int
	byAdmin map[string]*fakeWallet
	byRead  map[string]*fakeWallet

	failTransfer error
}

type fakeWallet struct {
	id      string
	balance int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		byAdmin: make(map[string]*fakeWallet),
		byRead:  make(map[string]*fakeWallet),
	}
}

func (g *fakeGateway) CreateWallet(ctx context.Context, name string) (lnbits.WalletCredentials, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("w%d", g.seq)
	w := &fakeWallet{id: id}
	g.byAdmin["admin-"+id] = w
	g.byRead["read-"+id] = w
	return lnbits.WalletCredentials{
		WalletID: id,
		AdminKey: "admin-" + id,
		ReadKey:  "read-" + id,
	}, nil
}

func (g *fakeGateway) GetBalance(ctx context.Context, readKey string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.byRead[readKey]
	if !ok {
		return 0, lnbits.ErrWalletFetch
	}
	return w.balance, nil
}

func (g *fakeGateway) Transfer(ctx context.Context, fromAdminKey, toReadKey string, amountSats int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failTransfer != nil {
		err := g.failTransfer
		g.failTransfer = nil
		return err
	}
	src, ok := g.byAdmin[fromAdminKey]
	if !ok {
		return lnbits.ErrWalletFetch
	}
	dst, ok := g.byRead[toReadKey]
	if !ok {
		return lnbits.ErrWalletFetch
	}
	if src.balance < amountSats {
		return lnbits.ErrNotEnoughSats
	}
	src.balance -= amountSats
	dst.balance += amountSats
	return nil
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, readKey string, amountSats int64, memo string) (lnbits.Invoice, error) {
	return lnbits.Invoice{PaymentRequest: "lnbc-fake", CheckingID: "chk-fake"}, nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, adminKey, invoice string) error {
	return nil
}

func (g *fakeGateway) DecodeInvoice(ctx context.Context, invoice string) (int64, error) {
	return 0, nil
}

func (g *fakeGateway) WalletHistory(ctx context.Context, readKey string, offset, limit int) ([]lnbits.Transaction, error) {
	return nil, nil
}

func (g *fakeGateway) fund(readKey string, amountSats int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.byRead[readKey]; ok {
		w.balance += amountSats
	}
}

type testEnv struct {
	db      *bun.DB
	gateway *fakeGateway
	bank    *escrow.Bank
	users   *users.Service
	kv      kv.Store
	svc     *Service
}

func newTestEnv(t *testing.T, github *ghapi.Client) *testEnv {
	t.Helper()
	db := dbtest.New(t)
	gateway := newFakeGateway()
	log := applog.NewQuiet()
	bank := escrow.NewBank(gateway, log)
	userSvc := users.NewService(db)
	kvStore := kv.NewMemoryStore()
	return &testEnv{
		db:      db,
		gateway: gateway,
		bank:    bank,
		users:   userSvc,
		kv:      kvStore,
		svc:     NewService(db, bank, userSvc, github, kvStore, log),
	}
}

func (e *testEnv) createUser(t *testing.T, githubID int64, login string) *models.User {
	t.Helper()
	user, err := e.users.GetOrCreate(context.Background(), users.Identity{GithubID: githubID, Login: login})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", login, err)
	}
	return user
}

// fundUser provisions the user's wallet and credits it directly on the
// fake provider.
func (e *testEnv) fundUser(t *testing.T, userID uuid.UUID, amountSats int64) {
	t.Helper()
	wallet, err := e.bank.UserWallet(context.Background(), e.db, userID)
	if err != nil {
		t.Fatalf("failed to provision user wallet: %v", err)
	}
	e.gateway.fund(wallet.ReadKey, amountSats)
}

func (e *testEnv) seedIssue(t *testing.T, repoFullName string, number int) (*models.Repository, *models.Issue) {
	t.Helper()
	ctx := context.Background()
	repo := &models.Repository{
		GithubID:      int64(1000 + number),
		FullName:      repoFullName,
		OwnerGithubID: 1,
		HTMLURL:       "https://github.com/" + repoFullName,
	}
	if _, err := e.db.NewInsert().
		Model(repo).
		On("CONFLICT (github_id) DO NOTHING").
		Exec(ctx); err != nil {
		t.Fatalf("failed to insert repository: %v", err)
	}
	if err := e.db.NewSelect().Model(repo).Where("repo.full_name = ?", repoFullName).Scan(ctx); err != nil {
		t.Fatalf("failed to re-read repository: %v", err)
	}

	issue := &models.Issue{
		RepositoryID: repo.ID,
		GithubID:     int64(5000 + number),
		IssueNumber:  number,
		Title:        fmt.Sprintf("issue %d", number),
		HTMLURL:      fmt.Sprintf("https://github.com/%s/issues/%d", repoFullName, number),
	}
	if _, err := e.db.NewInsert().Model(issue).Exec(ctx); err != nil {
		t.Fatalf("failed to insert issue: %v", err)
	}
	return repo, issue
}

func (e *testEnv) reloadIssue(t *testing.T, id uuid.UUID) *models.Issue {
	t.Helper()
	issue := new(models.Issue)
	if err := e.db.NewSelect().Model(issue).Where("i.id = ?", id).Scan(context.Background()); err != nil {
		t.Fatalf("failed to reload issue: %v", err)
	}
	return issue
}

func (e *testEnv) userBalance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	wallet, err := e.bank.UserWallet(context.Background(), e.db, userID)
	if err != nil {
		t.Fatalf("failed to load user wallet: %v", err)
	}
	balance, err := e.gateway.GetBalance(context.Background(), wallet.ReadKey)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	return balance
}

func TestAddRewardMovesFundsAndTracksRing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	bob := env.createUser(t, 102, "bob")
	env.fundUser(t, alice.ID, 1000)
	env.fundUser(t, bob.ID, 1000)

	_, issue := env.seedIssue(t, "owner/repo", 7)

	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 500); err != nil {
		t.Fatalf("alice's pledge failed: %v", err)
	}
	if _, err := env.svc.AddReward(ctx, bob.ID, issue.ID, 300); err != nil {
		t.Fatalf("bob's pledge failed: %v", err)
	}

	rewardsList, err := env.svc.ListRewardsForIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("failed to list rewards: %v", err)
	}
	if len(rewardsList) != 2 {
		t.Fatalf("expected 2 reward rows, got %d", len(rewardsList))
	}

	escrowBalance, err := env.bank.EscrowBalance(ctx, env.db, issue.ID)
	if err != nil {
		t.Fatalf("failed to read escrow balance: %v", err)
	}
	if escrowBalance != 800 {
		t.Errorf("expected 800 sats in escrow, got %d", escrowBalance)
	}
	if got := env.userBalance(t, alice.ID); got != 500 {
		t.Errorf("expected alice at 500 sats, got %d", got)
	}

	reloaded := env.reloadIssue(t, issue.ID)
	if reloaded.LastRewarderID == nil || *reloaded.LastRewarderID != bob.ID {
		t.Errorf("expected bob as last rewarder, got %v", reloaded.LastRewarderID)
	}
	if reloaded.SecondLastRewarderID == nil || *reloaded.SecondLastRewarderID != alice.ID {
		t.Errorf("expected alice as second last rewarder, got %v", reloaded.SecondLastRewarderID)
	}
	if reloaded.ThirdLastRewarderID != nil {
		t.Errorf("expected empty third slot, got %v", reloaded.ThirdLastRewarderID)
	}
}

func TestAddRewardRejectsClosedIssue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)

	now := time.Now()
	if _, err := env.db.NewUpdate().
		Model((*models.Issue)(nil)).
		Set("is_closed = ?", true).
		Set("updated_at = ?", now).
		Where("id = ?", issue.ID).
		Exec(ctx); err != nil {
		t.Fatalf("failed to close issue: %v", err)
	}

	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 500); !errors.Is(err, ErrIssueIsClosed) {
		t.Fatalf("expected ErrIssueIsClosed, got %v", err)
	}

	rewardsList, err := env.svc.ListRewardsForIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("failed to list rewards: %v", err)
	}
	if len(rewardsList) != 0 {
		t.Errorf("expected no reward rows after rejected pledge, got %d", len(rewardsList))
	}
	if got := env.userBalance(t, alice.ID); got != 1000 {
		t.Errorf("expected alice untouched at 1000 sats, got %d", got)
	}
}

func TestAddRewardRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	alice := env.createUser(t, 101, "alice")
	_, issue := env.seedIssue(t, "owner/repo", 7)

	for _, amount := range []int64{0, -5} {
		if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestAddRewardRollsBackWhenFundsInsufficient(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 100)
	_, issue := env.seedIssue(t, "owner/repo", 7)

	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 500); !errors.Is(err, lnbits.ErrNotEnoughSats) {
		t.Fatalf("expected ErrNotEnoughSats, got %v", err)
	}

	rewardsList, err := env.svc.ListRewardsForIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("failed to list rewards: %v", err)
	}
	if len(rewardsList) != 0 {
		t.Errorf("expected pledge row rolled back, got %d rows", len(rewardsList))
	}
	reloaded := env.reloadIssue(t, issue.ID)
	if reloaded.LastRewarderID != nil {
		t.Errorf("expected ring untouched after rollback, got %v", reloaded.LastRewarderID)
	}
}

func TestAddRewardUnknownIssue(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.createUser(t, 101, "alice")

	if _, err := env.svc.AddReward(context.Background(), alice.ID, uuid.New(), 100); !errors.Is(err, ErrIssueDoesNotExist) {
		t.Fatalf("expected ErrIssueDoesNotExist, got %v", err)
	}
}

func TestRewardContributorPaysFullEscrowOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	bob := env.createUser(t, 102, "bob")
	env.fundUser(t, alice.ID, 1000)
	env.fundUser(t, bob.ID, 1000)

	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 500); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}
	if _, err := env.svc.AddReward(ctx, bob.ID, issue.ID, 300); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	winner := users.Identity{GithubID: 103, Login: "carol"}
	done, err := env.svc.RewardContributor(ctx, winner, ghapi.IssueIdentifier{
		RepoFullName: "owner/repo",
		IssueNumber:  7,
	}, "settle-once")
	if err != nil {
		t.Fatalf("settlement failed: %v", err)
	}
	if done.PaidSats != 800 {
		t.Errorf("expected 800 sats paid out, got %d", done.PaidSats)
	}
	if done.Replayed {
		t.Errorf("first settlement should not be marked replayed")
	}

	reloaded := env.reloadIssue(t, issue.ID)
	if !reloaded.IsClosed {
		t.Errorf("expected issue closed after settlement")
	}
	if reloaded.WinnerID == nil || *reloaded.WinnerID != done.WinnerID {
		t.Errorf("expected winner recorded on issue")
	}
	if reloaded.ClaimedAt == nil {
		t.Errorf("expected claimed_at set on settlement")
	}

	if got := env.userBalance(t, done.WinnerID); got != 800 {
		t.Errorf("expected winner at 800 sats, got %d", got)
	}
	escrowBalance, err := env.bank.EscrowBalance(ctx, env.db, issue.ID)
	if err != nil {
		t.Fatalf("failed to read escrow balance: %v", err)
	}
	if escrowBalance != 0 {
		t.Errorf("expected drained escrow, got %d", escrowBalance)
	}

	// A second attempt under a different key finds the issue closed.
	if _, err := env.svc.RewardContributor(ctx, winner, ghapi.IssueIdentifier{
		RepoFullName: "owner/repo",
		IssueNumber:  7,
	}, "settle-twice"); !errors.Is(err, ErrIssueIsClosed) {
		t.Fatalf("expected ErrIssueIsClosed on second settlement, got %v", err)
	}
	if got := env.userBalance(t, done.WinnerID); got != 800 {
		t.Errorf("second attempt moved funds: winner at %d sats", got)
	}
}

func TestRewardContributorReplaysByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 400); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	winner := users.Identity{GithubID: 103, Login: "carol"}
	target := ghapi.IssueIdentifier{RepoFullName: "owner/repo", IssueNumber: 7}

	first, err := env.svc.RewardContributor(ctx, winner, target, "pr:owner/repo#5:issue:7")
	if err != nil {
		t.Fatalf("settlement failed: %v", err)
	}

	replay, err := env.svc.RewardContributor(ctx, winner, target, "pr:owner/repo#5:issue:7")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !replay.Replayed {
		t.Errorf("expected replayed completion")
	}
	if replay.PaidSats != first.PaidSats || replay.WinnerID != first.WinnerID {
		t.Errorf("replay diverged: got %+v, want %+v", replay, first)
	}
	if got := env.userBalance(t, first.WinnerID); got != 400 {
		t.Errorf("replay moved funds: winner at %d sats", got)
	}
}

func TestRewardContributorReplaysFromDurableRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 400); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	winner := users.Identity{GithubID: 103, Login: "carol"}
	target := ghapi.IssueIdentifier{RepoFullName: "owner/repo", IssueNumber: 7}
	key := "pr:owner/repo#5:issue:7"

	first, err := env.svc.RewardContributor(ctx, winner, target, key)
	if err != nil {
		t.Fatalf("settlement failed: %v", err)
	}

	// Drop the fast-path record to force the settlements table lookup.
	if err := env.kv.Delete(ctx, kvPrefixSettlement+key); err != nil {
		t.Fatalf("failed to drop kv record: %v", err)
	}

	replay, err := env.svc.RewardContributor(ctx, winner, target, key)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !replay.Replayed {
		t.Errorf("expected replayed completion from the settlements table")
	}
	if replay.IssueID != first.IssueID || replay.PaidSats != first.PaidSats {
		t.Errorf("durable replay diverged: got %+v, want %+v", replay, first)
	}
}

func TestRewardContributorInFlightGuard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 400); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	key := "pr:owner/repo#5:issue:7"
	if _, err := env.kv.SetNX(ctx, kvPrefixInFlight+key, []byte("1"), time.Minute); err != nil {
		t.Fatalf("failed to simulate in-flight settlement: %v", err)
	}

	winner := users.Identity{GithubID: 103, Login: "carol"}
	_, err := env.svc.RewardContributor(ctx, winner, ghapi.IssueIdentifier{
		RepoFullName: "owner/repo",
		IssueNumber:  7,
	}, key)
	if !errors.Is(err, ErrSettlementInFlight) {
		t.Fatalf("expected ErrSettlementInFlight, got %v", err)
	}
}

func TestRewardContributorTransferFailureKeepsIssueOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 400); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	env.gateway.failTransfer = errors.New("provider unavailable")
	winner := users.Identity{GithubID: 103, Login: "carol"}
	target := ghapi.IssueIdentifier{RepoFullName: "owner/repo", IssueNumber: 7}

	if _, err := env.svc.RewardContributor(ctx, winner, target, "flaky"); err == nil {
		t.Fatalf("expected settlement to fail while provider is down")
	}

	reloaded := env.reloadIssue(t, issue.ID)
	if reloaded.IsClosed {
		t.Fatalf("expected failed settlement to roll the close back")
	}
	// The contributor is registered on the settlement transaction, so
	// the rollback removes the user row as well.
	if _, err := env.users.GetByLogin(ctx, "carol"); !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("expected winner registration rolled back, got %v", err)
	}

	// Same key retries cleanly once the provider recovers.
	done, err := env.svc.RewardContributor(ctx, winner, target, "flaky")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if done.PaidSats != 400 {
		t.Errorf("expected 400 sats paid on retry, got %d", done.PaidSats)
	}
}

func TestRewardContributorUnknownTargets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedIssue(t, "owner/repo", 7)
	winner := users.Identity{GithubID: 103, Login: "carol"}

	if _, err := env.svc.RewardContributor(ctx, winner, ghapi.IssueIdentifier{
		RepoFullName: "owner/unknown",
		IssueNumber:  7,
	}, ""); !errors.Is(err, ErrNothingToRewardFor) {
		t.Errorf("unknown repo: expected ErrNothingToRewardFor, got %v", err)
	}

	if _, err := env.svc.RewardContributor(ctx, winner, ghapi.IssueIdentifier{
		RepoFullName: "owner/repo",
		IssueNumber:  99,
	}, ""); !errors.Is(err, ErrNothingToRewardFor) {
		t.Errorf("unknown issue: expected ErrNothingToRewardFor, got %v", err)
	}
}

func TestConcurrentSettlementsPayExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue.ID, 600); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	winner := users.Identity{GithubID: 103, Login: "carol"}
	// The winner row exists up front so the race is purely about the
	// issue close.
	winnerUser := env.createUser(t, 103, "carol")
	target := ghapi.IssueIdentifier{RepoFullName: "owner/repo", IssueNumber: 7}

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.RewardContributor(ctx, winner, target, fmt.Sprintf("attempt-%d", i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrIssueIsClosed):
		default:
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winning settlement, got %d", succeeded)
	}
	if got := env.userBalance(t, winnerUser.ID); got != 600 {
		t.Errorf("expected winner at 600 sats, got %d", got)
	}
}

func TestConcurrentPledgesShareOneEscrowWallet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	bob := env.createUser(t, 102, "bob")
	env.fundUser(t, alice.ID, 1000)
	env.fundUser(t, bob.ID, 1000)
	_, issue := env.seedIssue(t, "owner/repo", 7)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{alice.ID, bob.ID} {
		wg.Add(1)
		go func(i int, rewarderID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.svc.AddReward(ctx, rewarderID, issue.ID, 100)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("pledge %d failed: %v", i, err)
		}
	}

	count, err := env.db.NewSelect().
		Model((*models.IssueWallet)(nil)).
		Where("iw.issue_id = ?", issue.ID).
		Count(ctx)
	if err != nil {
		t.Fatalf("failed to count escrow wallets: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one escrow wallet, got %d", count)
	}

	escrowBalance, err := env.bank.EscrowBalance(ctx, env.db, issue.ID)
	if err != nil {
		t.Fatalf("failed to read escrow balance: %v", err)
	}
	if escrowBalance != 200 {
		t.Errorf("expected 200 sats in escrow, got %d", escrowBalance)
	}
}

func TestTotalRewardFilters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	bob := env.createUser(t, 102, "bob")
	env.fundUser(t, alice.ID, 2000)
	env.fundUser(t, bob.ID, 2000)

	_, issueA := env.seedIssue(t, "owner/repo", 7)
	_, issueB := env.seedIssue(t, "owner/other", 9)

	mustPledge := func(rewarderID uuid.UUID, issueID uuid.UUID, amount int64) {
		t.Helper()
		if _, err := env.svc.AddReward(ctx, rewarderID, issueID, amount); err != nil {
			t.Fatalf("pledge failed: %v", err)
		}
	}
	mustPledge(alice.ID, issueA.ID, 500)
	mustPledge(bob.ID, issueA.ID, 300)
	mustPledge(alice.ID, issueB.ID, 200)

	cases := []struct {
		name   string
		filter TotalFilter
		want   int64
	}{
		{"all", TotalFilter{}, 1000},
		{"by repo", TotalFilter{RepoFullName: "owner/repo"}, 800},
		{"by repo and issue", TotalFilter{RepoFullName: "owner/repo", IssueNumber: 7}, 800},
		{"by rewarder", TotalFilter{RewarderID: alice.ID}, 700},
		{"no match", TotalFilter{RepoFullName: "owner/none"}, 0},
	}
	for _, tc := range cases {
		got, err := env.svc.TotalReward(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: total failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %d sats, got %d", tc.name, tc.want, got)
		}
	}
}

func TestListRewards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	alice := env.createUser(t, 101, "alice")
	bob := env.createUser(t, 102, "bob")
	env.fundUser(t, alice.ID, 2000)
	env.fundUser(t, bob.ID, 2000)

	_, issueA := env.seedIssue(t, "owner/repo", 7)
	_, issueB := env.seedIssue(t, "owner/other", 9)

	for _, pledge := range []struct {
		rewarderID uuid.UUID
		issueID    uuid.UUID
		amount     int64
	}{
		{alice.ID, issueA.ID, 500},
		{bob.ID, issueA.ID, 300},
		{alice.ID, issueB.ID, 200},
	} {
		if _, err := env.svc.AddReward(ctx, pledge.rewarderID, pledge.issueID, pledge.amount); err != nil {
			t.Fatalf("pledge failed: %v", err)
		}
	}

	all, count, err := env.svc.ListRewards(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if count != 3 || len(all) != 3 {
		t.Fatalf("expected 3 rewards, got count=%d len=%d", count, len(all))
	}
	// Newest first.
	if all[0].RewardSats != 200 {
		t.Errorf("expected latest pledge first, got %d sats", all[0].RewardSats)
	}
	if all[0].Rewarder == nil || all[0].Rewarder.Login != "alice" {
		t.Errorf("expected rewarder relation loaded")
	}

	byRepo, count, err := env.svc.ListRewards(ctx, ListFilter{RepoFullName: "owner/repo"})
	if err != nil {
		t.Fatalf("list by repo failed: %v", err)
	}
	if count != 2 || len(byRepo) != 2 {
		t.Fatalf("expected 2 rewards for owner/repo, got count=%d len=%d", count, len(byRepo))
	}

	byRewarder, count, err := env.svc.ListRewards(ctx, ListFilter{RewarderID: bob.ID})
	if err != nil {
		t.Fatalf("list by rewarder failed: %v", err)
	}
	if count != 1 || byRewarder[0].RewardSats != 300 {
		t.Fatalf("expected bob's single 300 sat pledge, got count=%d", count)
	}

	paged, count, err := env.svc.ListRewards(ctx, ListFilter{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("paged list failed: %v", err)
	}
	if count != 3 || len(paged) != 1 {
		t.Fatalf("expected count 3 with one page item, got count=%d len=%d", count, len(paged))
	}
}

// githubStub serves just enough of the GitHub REST surface for
// CreateReward and CheckPull.
type githubStub struct {
	repo    ghapi.Repository
	issues  map[int]map[string]any
	pull    map[string]any
	commits []map[string]any
}

func (s *githubStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/"+s.repo.FullName, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":             s.repo.ID,
			"full_name":      s.repo.FullName,
			"html_url":       s.repo.HTMLURL,
			"default_branch": s.repo.DefaultBranch,
			"owner":          map[string]any{"id": 1},
		})
	})
	mux.HandleFunc("/repos/"+s.repo.FullName+"/issues/", func(w http.ResponseWriter, r *http.Request) {
		var number int
		fmt.Sscanf(r.URL.Path, "/repos/"+s.repo.FullName+"/issues/%d", &number)
		issue, ok := s.issues[number]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(issue)
	})
	mux.HandleFunc("/repos/"+s.repo.FullName+"/pulls/", func(w http.ResponseWriter, r *http.Request) {
		if s.pull == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/commits") {
			json.NewEncoder(w).Encode(s.commits)
			return
		}
		json.NewEncoder(w).Encode(s.pull)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateRewardRegistersIssueFromGitHub(t *testing.T) {
	ctx := context.Background()
	stub := &githubStub{
		repo: ghapi.Repository{ID: 42, FullName: "owner/repo", HTMLURL: "https://github.com/owner/repo", DefaultBranch: "main"},
		issues: map[int]map[string]any{
			7: {"id": 4207, "number": 7, "title": "Fix the thing", "state": "open",
				"html_url": "https://github.com/owner/repo/issues/7"},
			8: {"id": 4208, "number": 8, "title": "Already done", "state": "closed",
				"html_url": "https://github.com/owner/repo/issues/8"},
		},
	}
	srv := stub.server(t)
	github := ghapi.NewClient(ghapi.Config{BaseURL: srv.URL})

	env := newTestEnv(t, github)
	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)

	reward, err := env.svc.CreateReward(ctx, alice.ID, "https://github.com/owner/repo/issues/7", 250)
	if err != nil {
		t.Fatalf("first pledge failed: %v", err)
	}
	if reward.RewardSats != 250 {
		t.Errorf("expected 250 sats recorded, got %d", reward.RewardSats)
	}

	issue := new(models.Issue)
	if err := env.db.NewSelect().Model(issue).Where("i.github_id = ?", 4207).Scan(ctx); err != nil {
		t.Fatalf("expected issue registered: %v", err)
	}
	if issue.Title != "Fix the thing" || issue.IssueNumber != 7 {
		t.Errorf("issue metadata not captured: %+v", issue)
	}

	// Pledging again reuses the same rows and refreshes mutable metadata.
	stub.issues[7]["title"] = "Fix the thing properly"
	if _, err := env.svc.CreateReward(ctx, alice.ID, "https://github.com/owner/repo/issues/7", 100); err != nil {
		t.Fatalf("second pledge failed: %v", err)
	}
	count, err := env.db.NewSelect().Model((*models.Issue)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("failed to count issues: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a single issue row, got %d", count)
	}
	if err := env.db.NewSelect().Model(issue).Where("i.github_id = ?", 4207).Scan(ctx); err != nil {
		t.Fatalf("failed to reload issue: %v", err)
	}
	if issue.Title != "Fix the thing properly" {
		t.Errorf("expected refreshed title, got %q", issue.Title)
	}

	// Issues closed upstream are rejected before anything is written.
	if _, err := env.svc.CreateReward(ctx, alice.ID, "https://github.com/owner/repo/issues/8", 100); !errors.Is(err, ErrIssueIsClosed) {
		t.Fatalf("expected ErrIssueIsClosed for upstream-closed issue, got %v", err)
	}
}

func TestCheckPullSettlesReferencedIssues(t *testing.T) {
	ctx := context.Background()
	merged := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	stub := &githubStub{
		repo: ghapi.Repository{ID: 42, FullName: "owner/repo", HTMLURL: "https://github.com/owner/repo", DefaultBranch: "main"},
		pull: map[string]any{
			"id": 9001, "number": 5, "state": "closed",
			"body":       "Fixes #7",
			"merged_at":  merged,
			"updated_at": merged,
			"user":       map[string]any{"id": 103, "login": "carol"},
			"base": map[string]any{
				"ref":  "main",
				"repo": map[string]any{"id": 42, "full_name": "owner/repo", "default_branch": "main"},
			},
		},
		commits: []map[string]any{
			{"sha": "abc", "commit": map[string]any{"message": "closes #9"}},
		},
	}
	srv := stub.server(t)
	github := ghapi.NewClient(ghapi.Config{BaseURL: srv.URL})

	env := newTestEnv(t, github)
	alice := env.createUser(t, 101, "alice")
	env.fundUser(t, alice.ID, 1000)

	_, issue7 := env.seedIssue(t, "owner/repo", 7)
	if _, err := env.svc.AddReward(ctx, alice.ID, issue7.ID, 500); err != nil {
		t.Fatalf("pledge failed: %v", err)
	}

	results, err := env.svc.CheckPull(ctx, "owner/repo", 5)
	if err != nil {
		t.Fatalf("check-pull failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected outcomes for issues 7 and 9, got %d", len(results))
	}

	byNumber := make(map[int]IssueSettlement, len(results))
	for _, res := range results {
		byNumber[res.IssueNumber] = res
	}

	if res := byNumber[7]; res.Err != nil {
		t.Errorf("issue 7: expected settlement, got %v", res.Err)
	} else if res.Completion.PaidSats != 500 {
		t.Errorf("issue 7: expected 500 sats, got %d", res.Completion.PaidSats)
	}

	// Issue 9 is referenced but never tracked: reported, not fatal.
	if res := byNumber[9]; !errors.Is(res.Err, ErrNothingToRewardFor) {
		t.Errorf("issue 9: expected ErrNothingToRewardFor, got %v", res.Err)
	}

	reloaded := env.reloadIssue(t, issue7.ID)
	if !reloaded.IsClosed {
		t.Errorf("expected issue 7 closed after check-pull")
	}

	// Replaying the same pull request does not pay twice.
	again, err := env.svc.CheckPull(ctx, "owner/repo", 5)
	if err != nil {
		t.Fatalf("replayed check-pull failed: %v", err)
	}
	for _, res := range again {
		if res.IssueNumber == 7 {
			if res.Err != nil {
				t.Errorf("replay: expected recorded completion, got %v", res.Err)
			} else if !res.Completion.Replayed {
				t.Errorf("replay: expected completion marked replayed")
			}
		}
	}
}

func TestCheckPullRejectsUnmergedPull(t *testing.T) {
	updated := time.Now().UTC().Format(time.RFC3339)
	stub := &githubStub{
		repo: ghapi.Repository{ID: 42, FullName: "owner/repo", HTMLURL: "https://github.com/owner/repo", DefaultBranch: "main"},
		pull: map[string]any{
			"id": 9001, "number": 5, "state": "closed",
			"body":       "Fixes #7",
			"updated_at": updated,
			"user":       map[string]any{"id": 103, "login": "carol"},
			"base": map[string]any{
				"ref":  "main",
				"repo": map[string]any{"id": 42, "full_name": "owner/repo", "default_branch": "main"},
			},
		},
	}
	srv := stub.server(t)
	github := ghapi.NewClient(ghapi.Config{BaseURL: srv.URL})

	env := newTestEnv(t, github)
	if _, err := env.svc.CheckPull(context.Background(), "owner/repo", 5); !errors.Is(err, ErrPullRequestNotEligible) {
		t.Fatalf("expected ErrPullRequestNotEligible, got %v", err)
	}
}
