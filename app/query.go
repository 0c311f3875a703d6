package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/calehh/cfund-app/state"
	"github.com/calehh/cfund-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

const CodeUnknownPath uint32 = 404

func (app *CFundApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = CodeUnknownPath
		res.Log = "unknown query path " + req.Path
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

func respond(res *abcitypes.ResponseQuery, v any, err error) *abcitypes.ResponseQuery {
	if err != nil {
		res.Code = types.ErrorCode(err)
		res.Log = err.Error()
		return res
	}
	res.Value, err = json.Marshal(v)
	if err != nil {
		res.Code = types.CodeInternal
		res.Log = err.Error()
	}
	return res
}

func parseAddress(dat []byte) (addr common.Address, err error) {
	if len(dat) != common.AddressLength {
		return addr, types.ErrInvalidTx
	}
	return common.BytesToAddress(dat), nil
}

type AccountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewAccountQuerier(db *state.StateDB, logger cmtlog.Logger) (q *AccountQuerier) {
	q = &AccountQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *AccountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	addr, err := parseAddress(req.Data)
	if err != nil {
		return respond(res, nil, err), nil
	}
	a, height, err := q.db.Account(addr)
	res.Height = int64(height)
	return respond(res, a, err), nil
}

// CampaignsQuerier lists deployed campaigns with their summaries. The request
// data is an optional JSON encoded types.PageQuery.
type CampaignsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewCampaignsQuerier(db *state.StateDB, logger cmtlog.Logger) (q *CampaignsQuerier) {
	q = &CampaignsQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *CampaignsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Height: int64(q.db.Height())}
	var page types.PageQuery
	if len(req.Data) > 0 {
		if err = json.Unmarshal(req.Data, &page); err != nil {
			return respond(res, nil, types.ErrInvalidTx), nil
		}
	}
	list, err := CampaignSummaries(q.db, page)
	return respond(res, list, err), nil
}

// CampaignSummaries pages through deployed campaigns in creation order.
func CampaignSummaries(db *state.StateDB, page types.PageQuery) (list *types.CampaignList, err error) {
	addrs, total, err := db.Campaigns(page.Offset, page.Limit)
	if err != nil {
		return nil, err
	}
	list = &types.CampaignList{Total: total, Campaigns: make([]types.Summary, 0, len(addrs))}
	for _, addr := range addrs {
		sum, err := db.Summary(addr)
		if err != nil {
			return nil, err
		}
		list.Campaigns = append(list.Campaigns, sum)
	}
	return list, nil
}

type CampaignQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewCampaignQuerier(db *state.StateDB, logger cmtlog.Logger) (q *CampaignQuerier) {
	q = &CampaignQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *CampaignQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	addr, err := parseAddress(req.Data)
	if err != nil {
		return respond(res, nil, err), nil
	}
	c, height, err := q.db.Campaign(addr)
	res.Height = int64(height)
	return respond(res, c, err), nil
}

type RequestQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewRequestQuerier(db *state.StateDB, logger cmtlog.Logger) (q *RequestQuerier) {
	q = &RequestQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *RequestQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Height: int64(q.db.Height())}
	campaign, index, err := types.ParseRequestKey(req.Data)
	if err != nil {
		return respond(res, nil, err), nil
	}
	r, err := q.db.Request(campaign, index)
	return respond(res, r, err), nil
}

type RequestsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewRequestsQuerier(db *state.StateDB, logger cmtlog.Logger) (q *RequestsQuerier) {
	q = &RequestsQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *RequestsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Height: int64(q.db.Height())}
	campaign, err := parseAddress(req.Data)
	if err != nil {
		return respond(res, nil, err), nil
	}
	rs, err := q.db.Requests(campaign)
	return respond(res, rs, err), nil
}

type ContributorQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewContributorQuerier(db *state.StateDB, logger cmtlog.Logger) (q *ContributorQuerier) {
	q = &ContributorQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *ContributorQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{Height: int64(q.db.Height())}
	campaign, who, err := types.ParseContributorKey(req.Data)
	if err != nil {
		return respond(res, nil, err), nil
	}
	amount, member, err := q.db.Contribution(campaign, who)
	return respond(res, &types.ContributorStatus{
		Campaign:    campaign,
		Identity:    who,
		Contributor: member,
		Amount:      amount,
	}, err), nil
}
