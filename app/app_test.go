package app

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/calehh/cfund-app/config"
	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const testChainId = "cfund-test"

type testChain struct {
	t      *testing.T
	app    *CFundApp
	height int64
	nonces map[common.Address]uint64
}

func newTestChain(t *testing.T, accounts ...types.GenesisAccount) *testChain {
	t.Helper()
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	app := NewCFundAppWithDB(config.DefaultAppConfig(t.TempDir()), db, cmtlog.NewNopLogger())
	appState, err := json.Marshal(types.GenesisAppState{Accounts: accounts})
	if err != nil {
		t.Fatalf("marshal app state: %v", err)
	}
	_, err = app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: testChainId, AppStateBytes: appState})
	if err != nil {
		t.Fatalf("init chain: %v", err)
	}
	return &testChain{t: t, app: app, nonces: make(map[common.Address]uint64)}
}

func (c *testChain) sign(key *ecdsa.PrivateKey, payload any) []byte {
	c.t.Helper()
	sender := crypto.PubkeyToAddress(key.PublicKey)
	btx, err := tx.New(c.nonces[sender], payload)
	if err != nil {
		c.t.Fatalf("new tx: %v", err)
	}
	if err = btx.Sign(key, testChainId); err != nil {
		c.t.Fatalf("sign: %v", err)
	}
	c.nonces[sender]++
	dat, err := tx.MarshalCFTx(btx)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	return dat
}

func (c *testChain) block(txs ...[]byte) []*abcitypes.ExecTxResult {
	c.t.Helper()
	ctx := context.Background()
	c.height++
	now := time.Date(2026, 5, 1, 0, 0, int(c.height), 0, time.UTC)
	prep, err := c.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{Txs: txs, MaxTxBytes: 1 << 20, Height: c.height, Time: now})
	if err != nil {
		c.t.Fatalf("prepare: %v", err)
	}
	proc, err := c.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: prep.Txs, Height: c.height, Time: now})
	if err != nil || proc.Status != abcitypes.ResponseProcessProposal_ACCEPT {
		c.t.Fatalf("process: %v %v", proc.Status, err)
	}
	fin, err := c.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Txs: prep.Txs, Height: c.height, Time: now})
	if err != nil {
		c.t.Fatalf("finalize block: %v", err)
	}
	if _, err = c.app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
		c.t.Fatalf("commit: %v", err)
	}
	return fin.TxResults
}

func (c *testChain) query(path string, data []byte, v any) uint32 {
	c.t.Helper()
	res, err := c.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	if err != nil {
		c.t.Fatalf("query %s: %v", path, err)
	}
	if res.Code == types.CodeOK && v != nil {
		if err = json.Unmarshal(res.Value, v); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res.Code
}

func mustKey(t *testing.T) (*ecdsa.PrivateKey, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey)
}

func TestCrowdfundingOnChain(t *testing.T) {
	mgrKey, _ := mustKey(t)
	aKey, a := mustKey(t)
	bKey, b := mustKey(t)
	vendor := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	c := newTestChain(t,
		types.GenesisAccount{Address: a, Balance: 1_000},
		types.GenesisAccount{Address: b, Balance: 1_000},
	)

	res := c.block(c.sign(mgrKey, &tx.CreateCampaignTx{Params: types.CampaignParams{MinimumContribution: 100, Title: "Clinic"}}))
	if res[0].Code != types.CodeOK {
		t.Fatalf("create campaign: %s", res[0].Log)
	}
	campaign := common.BytesToAddress(res[0].Data)

	res = c.block(
		c.sign(aKey, &tx.ContributeTx{Campaign: campaign, Amount: 100}),
		c.sign(bKey, &tx.ContributeTx{Campaign: campaign, Amount: 50}),
	)
	if res[0].Code != types.CodeOK || res[1].Code != types.CodeBelowMinimum {
		t.Fatalf("unexpected contribute codes %d %d", res[0].Code, res[1].Code)
	}

	var sum types.CampaignList
	if code := c.query("/campaigns", nil, &sum); code != types.CodeOK {
		t.Fatalf("query campaigns code %d", code)
	}
	if sum.Total != 1 || sum.Campaigns[0].Balance != 100 || sum.Campaigns[0].ApproversCount != 1 {
		t.Fatalf("unexpected campaigns %+v", sum)
	}
	var status types.ContributorStatus
	c.query("/contributor/", types.ContributorKey(campaign, b), &status)
	if status.Contributor {
		t.Fatalf("below minimum contributor registered")
	}

	res = c.block(c.sign(mgrKey, &tx.CreateRequestTx{Campaign: campaign, Value: 60, Recipient: vendor.Hex(), Description: "gloves"}))
	if res[0].Code != types.CodeOK {
		t.Fatalf("create request: %s", res[0].Log)
	}
	res = c.block(
		c.sign(mgrKey, &tx.FinalizeRequestTx{Campaign: campaign, Request: 0}),
		c.sign(aKey, &tx.ApproveRequestTx{Campaign: campaign, Request: 0}),
		c.sign(mgrKey, &tx.FinalizeRequestTx{Campaign: campaign, Request: 0}),
		c.sign(mgrKey, &tx.FinalizeRequestTx{Campaign: campaign, Request: 0}),
	)
	want := []uint32{types.CodeMajorityNotReached, types.CodeOK, types.CodeOK, types.CodeRequestAlreadyComplete}
	for i, r := range res {
		if r.Code != want[i] {
			t.Fatalf("tx %d: expected code %d, got %d (%s)", i, want[i], r.Code, r.Log)
		}
	}

	var req types.Request
	c.query("/request/", types.RequestKey(campaign, 0), &req)
	if !req.Complete || req.ApprovalCount != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	var acnt state.Account
	c.query("/accounts/", vendor.Bytes(), &acnt)
	if acnt.Balance != 60 {
		t.Fatalf("expected vendor balance 60, got %d", acnt.Balance)
	}
	c.query("/accounts/", a.Bytes(), &acnt)
	if acnt.Balance != 900 || acnt.Nonce != 2 {
		t.Fatalf("unexpected contributor account %+v", acnt)
	}
	var camp types.Campaign
	c.query("/campaign/", campaign.Bytes(), &camp)
	if camp.Balance != 40 || camp.Released != 60 || camp.Raised != 100 {
		t.Fatalf("unexpected campaign %+v", camp)
	}
	if code := c.query("/request/", types.RequestKey(campaign, 9), nil); code != types.CodeRequestNotFound {
		t.Fatalf("expected request not found code, got %d", code)
	}
	if code := c.query("/nope", nil, nil); code != CodeUnknownPath {
		t.Fatalf("expected unknown path, got %d", code)
	}
}

func TestPrepareDropsUnverifiable(t *testing.T) {
	key, _ := mustKey(t)
	c := newTestChain(t)
	good := c.sign(key, &tx.CreateCampaignTx{Params: types.CampaignParams{MinimumContribution: 1, Title: "A"}})
	replay := good
	unsigned, _ := tx.MarshalCFTx(&tx.CFTx{Version: tx.CFTxVersion1, Type: tx.CFTxTypeContribute, Tx: &tx.ContributeTx{Amount: 1}})

	prep, err := c.app.PrepareProposal(context.Background(), &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good, replay, unsigned, []byte("garbage")},
		MaxTxBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(prep.Txs) != 1 {
		t.Fatalf("expected only the first tx kept, got %d", len(prep.Txs))
	}
	proc, _ := c.app.ProcessProposal(context.Background(), &abcitypes.RequestProcessProposal{Txs: [][]byte{good, replay}})
	if proc.Status != abcitypes.ResponseProcessProposal_REJECT {
		t.Fatalf("expected replayed nonce to be rejected")
	}
}

func TestCheckTx(t *testing.T) {
	key, _ := mustKey(t)
	c := newTestChain(t)
	ok := c.sign(key, &tx.CreateCampaignTx{Params: types.CampaignParams{MinimumContribution: 1, Title: "A"}})
	bad := c.sign(key, &tx.CreateCampaignTx{Params: types.CampaignParams{Title: "A"}})

	res, err := c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: ok})
	if err != nil || res.Code != types.CodeOK {
		t.Fatalf("expected valid tx to pass check: %v %+v", err, res)
	}
	res, _ = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: bad})
	if res.Code != types.CodeInvalidAmount {
		t.Fatalf("expected invalid amount, got %d", res.Code)
	}
	res, _ = c.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte("{}")})
	if res.Code != types.CodeInvalidTx {
		t.Fatalf("expected invalid tx, got %d", res.Code)
	}
}

func TestInitChainIdempotent(t *testing.T) {
	_, a := mustKey(t)
	c := newTestChain(t, types.GenesisAccount{Address: a, Balance: 5})
	hash := c.app.DB().Header().Hash
	res, err := c.app.InitChain(context.Background(), &abcitypes.RequestInitChain{ChainId: testChainId})
	if err != nil {
		t.Fatalf("second init chain: %v", err)
	}
	if string(res.AppHash) != string(hash) {
		t.Fatalf("app hash changed on repeated init")
	}
	info, _ := c.app.Info(context.Background(), &abcitypes.RequestInfo{})
	if info.LastBlockHeight != 0 || string(info.LastBlockAppHash) != string(hash) {
		t.Fatalf("unexpected info %+v", info)
	}
}
