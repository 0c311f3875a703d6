package state

import (
	"context"
	"errors"
	"testing"

	"github.com/calehh/cfund-app/custody"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	manager = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	dave    = common.HexToAddress("0x00000000000000000000000000000000000000b4")
	vendor  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	db, err := NewMemStateDB(cmtlog.NewNopLogger())
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	return db
}

func commit(t *testing.T, db *StateDB, st *State) {
	t.Helper()
	if _, err := st.Update(); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := db.SetState(st); err != nil {
		t.Fatalf("set state: %v", err)
	}
}

func createCampaign(t *testing.T, st *State, minimum uint64) common.Address {
	t.Helper()
	ev, err := st.CreateCampaign(manager, types.CampaignParams{
		MinimumContribution: minimum,
		Goal:                1000,
		Title:               "Community garden",
	}, 100, false)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return ev.Campaign
}

func contribute(t *testing.T, st *State, cust custody.Custody, campaign, who common.Address, amount uint64) {
	t.Helper()
	if _, err := st.Contribute(context.Background(), cust, campaign, who, amount, 200, false); err != nil {
		t.Fatalf("contribute %s: %v", who.Hex(), err)
	}
}

func TestMajorityReached(t *testing.T) {
	tests := []struct {
		approvals uint64
		approvers uint64
		want      bool
	}{
		{0, 0, false},
		{0, 1, false},
		{1, 1, true},
		{1, 2, false},
		{2, 2, true},
		{2, 3, true},
		{2, 4, false},
		{3, 4, true},
		{3, 5, true},
		{2, 5, false},
	}
	for _, tt := range tests {
		if got := MajorityReached(tt.approvals, tt.approvers); got != tt.want {
			t.Fatalf("MajorityReached(%d, %d) = %v, want %v", tt.approvals, tt.approvers, got, tt.want)
		}
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	tests := []struct {
		name   string
		params types.CampaignParams
		err    error
	}{
		{"zero minimum", types.CampaignParams{Title: "x"}, types.ErrInvalidAmount},
		{"empty title", types.CampaignParams{MinimumContribution: 1, Title: "  "}, types.ErrInvalidCampaign},
		{"negative deadline", types.CampaignParams{MinimumContribution: 1, Title: "x", Deadline: -1}, types.ErrInvalidCampaign},
	}
	st := newTestDB(t).NewState()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.CreateCampaign(manager, tt.params, 0, false)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
	if st.Header().Campaigns != 0 {
		t.Fatalf("expected no campaign registered, got %d", st.Header().Campaigns)
	}
}

func TestCreateCampaignCommitted(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	first := createCampaign(t, st, 100)
	second := createCampaign(t, st, 5)
	if first == second {
		t.Fatalf("expected distinct campaign addresses")
	}

	if _, total, _ := db.Campaigns(0, 0); total != 0 {
		t.Fatalf("expected uncommitted campaigns to be invisible, got %d", total)
	}
	commit(t, db, st)

	addrs, total, err := db.Campaigns(0, 0)
	if err != nil {
		t.Fatalf("list campaigns: %v", err)
	}
	if total != 2 || len(addrs) != 2 || addrs[0] != first || addrs[1] != second {
		t.Fatalf("unexpected campaign list %v (total %d)", addrs, total)
	}
	page, _, err := db.Campaigns(1, 1)
	if err != nil || len(page) != 1 || page[0] != second {
		t.Fatalf("unexpected page %v: %v", page, err)
	}

	sum, err := db.Summary(first)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.MinimumContribution != 100 || sum.Balance != 0 || sum.ApproversCount != 0 || sum.RequestsCount != 0 || sum.Manager != manager {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if _, err = db.Summary(vendor); !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
}

func TestContributeRegistry(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 100)

	contribute(t, st, cust, campaign, alice, 100)
	contribute(t, st, cust, campaign, alice, 250)

	_, err := st.Contribute(context.Background(), cust, campaign, bob, 50, 0, false)
	if !errors.Is(err, types.ErrBelowMinimum) {
		t.Fatalf("expected below minimum, got %v", err)
	}
	_, err = st.Contribute(context.Background(), cust, vendor, bob, 500, 0, false)
	if !errors.Is(err, types.ErrCampaignNotFound) {
		t.Fatalf("expected campaign not found, got %v", err)
	}
	commit(t, db, st)

	sum, err := db.Summary(campaign)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Balance != 350 || sum.ApproversCount != 1 {
		t.Fatalf("expected balance 350 and 1 approver, got %+v", sum)
	}
	amount, member, err := db.Contribution(campaign, alice)
	if err != nil || !member || amount != 350 {
		t.Fatalf("expected alice to have contributed 350, got %d %v %v", amount, member, err)
	}
	if ok, _ := db.IsContributor(campaign, bob); ok {
		t.Fatalf("bob should not be a contributor")
	}
	if ok, _ := db.IsContributor(campaign, manager); ok {
		t.Fatalf("manager is not a contributor until contributing")
	}
	if len(cust.Collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(cust.Collections))
	}
}

func TestContributeCollectFailure(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	cust.CollectErr = custody.ErrInsufficientFunds
	campaign := createCampaign(t, st, 10)

	_, err := st.Contribute(context.Background(), cust, campaign, alice, 10, 0, false)
	if !errors.Is(err, types.ErrFundsUnavailable) || !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("expected funds unavailable, got %v", err)
	}
	c, _ := st.GetCampaign(campaign)
	if c.Balance != 0 || c.ApproversCount != 0 {
		t.Fatalf("failed contribution changed campaign: %+v", c)
	}
}

func TestCreateRequestChecks(t *testing.T) {
	st := newTestDB(t).NewState()
	campaign := createCampaign(t, st, 10)
	ok := types.RequestParams{Description: "seeds", Value: 40, Recipient: vendor}

	tests := []struct {
		name   string
		actor  common.Address
		params types.RequestParams
		err    error
	}{
		{"not manager", alice, ok, types.ErrUnauthorized},
		{"zero value", manager, types.RequestParams{Value: 0, Recipient: vendor}, types.ErrInvalidAmount},
		{"zero recipient", manager, types.RequestParams{Value: 1}, types.ErrInvalidRecipient},
		{"campaign recipient", manager, types.RequestParams{Value: 1, Recipient: campaign}, types.ErrInvalidRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.CreateRequest(tt.actor, campaign, tt.params, 0, false)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}

	for i := uint64(0); i < 2; i++ {
		ev, err := st.CreateRequest(manager, campaign, ok, 0, false)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		if ev.Request != i {
			t.Fatalf("expected request index %d, got %d", i, ev.Request)
		}
	}
	r, err := st.GetRequest(campaign, 1)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if r.Complete || r.ApprovalCount != 0 || r.Value != 40 || r.Recipient != vendor {
		t.Fatalf("unexpected request %+v", r)
	}
}

func TestApproveRequestChecks(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	contribute(t, st, cust, campaign, alice, 10)
	if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 5, Recipient: vendor}, 0, false); err != nil {
		t.Fatalf("create request: %v", err)
	}

	if _, err := st.ApproveRequest(alice, campaign, 7, false); !errors.Is(err, types.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
	if _, err := st.ApproveRequest(bob, campaign, 0, false); !errors.Is(err, types.ErrNotAContributor) {
		t.Fatalf("expected not a contributor, got %v", err)
	}
	ev, err := st.ApproveRequest(alice, campaign, 0, false)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ev.ApprovalCount != 1 {
		t.Fatalf("expected 1 approval, got %d", ev.ApprovalCount)
	}
	if _, err = st.ApproveRequest(alice, campaign, 0, false); !errors.Is(err, types.ErrAlreadyVoted) {
		t.Fatalf("expected already voted, got %v", err)
	}
	r, _ := st.GetRequest(campaign, 0)
	if r.ApprovalCount != 1 {
		t.Fatalf("double vote changed approvals to %d", r.ApprovalCount)
	}
}

func TestFinalizeRequestFlow(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	for _, who := range []common.Address{alice, bob, carol, dave} {
		contribute(t, st, cust, campaign, who, 100)
	}
	if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 150, Recipient: vendor}, 0, false); err != nil {
		t.Fatalf("create request: %v", err)
	}
	ctx := context.Background()

	for _, index := range []uint64{1, 7} {
		if _, err := st.FinalizeRequest(ctx, cust, manager, campaign, index, 0, false); !errors.Is(err, types.ErrRequestNotFound) {
			t.Fatalf("finalize request %d: expected not found, got %v", index, err)
		}
	}

	for _, who := range []common.Address{alice, bob} {
		if _, err := st.ApproveRequest(who, campaign, 0, false); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	if _, err := st.FinalizeRequest(ctx, cust, alice, campaign, 0, 0, false); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := st.FinalizeRequest(ctx, cust, manager, campaign, 0, 0, false); !errors.Is(err, types.ErrMajorityNotReached) {
		t.Fatalf("expected majority not reached with 2 of 4, got %v", err)
	}
	if _, err := st.ApproveRequest(carol, campaign, 0, false); err != nil {
		t.Fatalf("approve: %v", err)
	}
	ev, err := st.FinalizeRequest(ctx, cust, manager, campaign, 0, 500, false)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if ev.Balance != 250 || cust.Paid(vendor) != 150 {
		t.Fatalf("expected balance 250 and vendor paid 150, got %d / %d", ev.Balance, cust.Paid(vendor))
	}
	if _, err = st.FinalizeRequest(ctx, cust, manager, campaign, 0, 0, false); !errors.Is(err, types.ErrRequestAlreadyComplete) {
		t.Fatalf("expected already complete, got %v", err)
	}
	if _, err = st.ApproveRequest(dave, campaign, 0, false); !errors.Is(err, types.ErrRequestAlreadyComplete) {
		t.Fatalf("expected already complete on late approval, got %v", err)
	}
	if len(cust.Transfers) != 1 {
		t.Fatalf("expected exactly one transfer, got %d", len(cust.Transfers))
	}
	commit(t, db, st)

	c, _, err := db.Campaign(campaign)
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if c.Raised != c.Balance+c.Released {
		t.Fatalf("raised %d != balance %d + released %d", c.Raised, c.Balance, c.Released)
	}
	r, err := db.Request(campaign, 0)
	if err != nil || !r.Complete || r.CompletedAt != 500 {
		t.Fatalf("expected completed request, got %+v %v", r, err)
	}
}

func TestFinalizeInsufficientBalance(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	contribute(t, st, cust, campaign, alice, 100)
	for i := 0; i < 2; i++ {
		if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 80, Recipient: vendor}, 0, false); err != nil {
			t.Fatalf("create request: %v", err)
		}
		if _, err := st.ApproveRequest(alice, campaign, uint64(i), false); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	ctx := context.Background()
	if _, err := st.FinalizeRequest(ctx, cust, manager, campaign, 0, 0, false); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := st.FinalizeRequest(ctx, cust, manager, campaign, 1, 0, false); !errors.Is(err, types.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestFinalizeTransferFailure(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	contribute(t, st, cust, campaign, alice, 100)
	if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 60, Recipient: vendor}, 0, false); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := st.ApproveRequest(alice, campaign, 0, false); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cust.Rejected[vendor] = true
	_, err := st.FinalizeRequest(context.Background(), cust, manager, campaign, 0, 0, false)
	if !errors.Is(err, types.ErrTransferFailed) || !errors.Is(err, custody.ErrRecipientRejected) {
		t.Fatalf("expected transfer failed, got %v", err)
	}
	c, _ := st.GetCampaign(campaign)
	r, _ := st.GetRequest(campaign, 0)
	if c.Balance != 100 || r.Complete {
		t.Fatalf("failed transfer changed state: balance %d complete %v", c.Balance, r.Complete)
	}

	cust.Rejected[vendor] = false
	if _, err = st.FinalizeRequest(context.Background(), cust, manager, campaign, 0, 0, false); err != nil {
		t.Fatalf("finalize after recovery: %v", err)
	}
}

func TestMajorityUsesCurrentRegistry(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	for _, who := range []common.Address{alice, bob, carol} {
		contribute(t, st, cust, campaign, who, 10)
	}
	if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 10, Recipient: vendor}, 0, false); err != nil {
		t.Fatalf("create request: %v", err)
	}
	for _, who := range []common.Address{alice, bob} {
		if _, err := st.ApproveRequest(who, campaign, 0, false); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	if _, err := st.FinalizeRequest(context.Background(), cust, manager, campaign, 0, 0, true); err != nil {
		t.Fatalf("expected 2 of 3 to pass, got %v", err)
	}

	contribute(t, st, cust, campaign, dave, 10)
	contribute(t, st, cust, campaign, manager, 10)
	_, err := st.FinalizeRequest(context.Background(), cust, manager, campaign, 0, 0, false)
	if !errors.Is(err, types.ErrMajorityNotReached) {
		t.Fatalf("expected 2 of 5 to fail, got %v", err)
	}
}

func TestCheckOnlyDoesNotMutate(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	if _, err := st.Contribute(context.Background(), cust, campaign, alice, 10, 0, true); err != nil {
		t.Fatalf("check contribute: %v", err)
	}
	if _, err := st.CreateCampaign(manager, types.CampaignParams{MinimumContribution: 1, Title: "y"}, 0, true); err != nil {
		t.Fatalf("check create: %v", err)
	}
	c, _ := st.GetCampaign(campaign)
	if c.Balance != 0 || c.ApproversCount != 0 || st.Header().Campaigns != 1 || len(cust.Collections) != 0 {
		t.Fatalf("check only mutated state: %+v", c)
	}
}

func TestCloneIsolation(t *testing.T) {
	st := newTestDB(t).NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)

	n := st.Clone()
	contribute(t, n, cust, campaign, alice, 10)

	c, _ := st.GetCampaign(campaign)
	if c.Balance != 0 {
		t.Fatalf("clone leaked into parent: balance %d", c.Balance)
	}
	if _, member, _ := st.Contribution(campaign, alice); member {
		t.Fatalf("clone leaked registry entry")
	}
}

func TestAccountCustody(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	if err := st.AddAccount(alice, 100); err != nil {
		t.Fatalf("add account: %v", err)
	}
	if err := st.AddAccount(alice, 1); !errors.Is(err, ErrAccountAlreadyExists) {
		t.Fatalf("expected duplicate account error, got %v", err)
	}
	campaign := createCampaign(t, st, 10)
	ctx := context.Background()

	if _, err := st.Contribute(ctx, st.Custody(), campaign, alice, 150, 0, false); !errors.Is(err, types.ErrFundsUnavailable) {
		t.Fatalf("expected funds unavailable, got %v", err)
	}
	contribute(t, st, st.Custody(), campaign, alice, 60)
	if _, err := st.CreateRequest(manager, campaign, types.RequestParams{Value: 25, Recipient: vendor}, 0, false); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := st.ApproveRequest(alice, campaign, 0, false); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := st.FinalizeRequest(ctx, st.Custody(), manager, campaign, 0, 0, false); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	commit(t, db, st)

	a, _, _ := db.Account(alice)
	v, _, _ := db.Account(vendor)
	c, _, _ := db.Campaign(campaign)
	if a.Balance != 40 || v.Balance != 25 || c.Balance != 35 {
		t.Fatalf("unexpected balances alice %d vendor %d campaign %d", a.Balance, v.Balance, c.Balance)
	}
}

func TestVerifyNonce(t *testing.T) {
	st := newTestDB(t).NewState()
	st.SetChainId("cfund-test")
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sender := crypto.PubkeyToAddress(key.PublicKey)

	btx, err := tx.New(0, &tx.ApproveRequestTx{Campaign: vendor})
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	if _, err = st.Verify(btx, false); !errors.Is(err, types.ErrSigInvalid) {
		t.Fatalf("expected unsigned tx to fail, got %v", err)
	}
	if err = btx.Sign(key, "cfund-test"); err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := st.Verify(btx, false)
	if err != nil || got != sender {
		t.Fatalf("expected sender %s, got %s: %v", sender.Hex(), got.Hex(), err)
	}
	if err = st.IncNonce(sender); err != nil {
		t.Fatalf("inc nonce: %v", err)
	}
	if _, err = st.Verify(btx, false); !errors.Is(err, types.ErrNonceInvalid) {
		t.Fatalf("expected replayed nonce to fail, got %v", err)
	}
}

func TestStateDBReload(t *testing.T) {
	ldb := dbm.NewMemDB()
	db, err := openStateDB(ldb, "", cmtlog.NewNopLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	st := db.NewState()
	cust := custody.NewMock()
	campaign := createCampaign(t, st, 10)
	contribute(t, st, cust, campaign, alice, 30)
	commit(t, db, st)
	hash := db.Header().Hash

	reopened, err := openStateDB(ldb, "", cmtlog.NewNopLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if string(reopened.Header().Hash) != string(hash) {
		t.Fatalf("hash changed across reload")
	}
	sum, err := reopened.Summary(campaign)
	if err != nil || sum.Balance != 30 || sum.ApproversCount != 1 {
		t.Fatalf("unexpected reloaded summary %+v: %v", sum, err)
	}
	next := reopened.NewState()
	if next.Header().Campaigns != 1 {
		t.Fatalf("expected factory sequence 1 after reload, got %d", next.Header().Campaigns)
	}
}
