package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/calehh/cfund-app/custody"
	"github.com/calehh/cfund-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MajorityReached reports whether approvals are strictly more than half of
// the current contributor registry.
func MajorityReached(approvals, approvers uint64) bool {
	return approvals > approvers/2
}

// CreateCampaign registers a new campaign managed by manager. The campaign
// address is derived from the manager and the factory sequence number.
func (s *State) CreateCampaign(manager common.Address, params types.CampaignParams, now int64, checkOnly bool) (event *types.EventCreateCampaign, err error) {
	if params.MinimumContribution == 0 {
		err = fmt.Errorf("%w: minimum contribution must be positive", types.ErrInvalidAmount)
		return
	}
	if strings.TrimSpace(params.Title) == "" {
		err = fmt.Errorf("%w: empty title", types.ErrInvalidCampaign)
		return
	}
	if params.Deadline < 0 {
		err = fmt.Errorf("%w: negative deadline", types.ErrInvalidCampaign)
		return
	}
	if checkOnly {
		return
	}

	index := s.header.Campaigns
	c := &types.Campaign{
		Address:             crypto.CreateAddress(manager, index),
		Index:               index,
		Manager:             manager,
		MinimumContribution: params.MinimumContribution,
		Goal:                params.Goal,
		Deadline:            params.Deadline,
		CreatedAt:           now,
		Title:               params.Title,
		Description:         params.Description,
		Category:            params.Category,
		Tagline:             params.Tagline,
		Creator:             params.Creator,
		CoverRef:            params.CoverRef,
	}
	s.header.Campaigns++
	s.setCampaign(c, ModifiedFlagNew)
	s.logger.Debug("campaign created", "campaign", c.Address.Hex(), "manager", manager.Hex())

	event = &types.EventCreateCampaign{
		Campaign:            c.Address,
		Index:               c.Index,
		Manager:             manager,
		MinimumContribution: c.MinimumContribution,
		Goal:                c.Goal,
		Title:               c.Title,
	}
	return
}

// Contribute moves amount from the contributor into the campaign and adds the
// contributor to the registry on first contribution.
func (s *State) Contribute(ctx context.Context, cust custody.Custody, campaign, contributor common.Address, amount uint64, now int64, checkOnly bool) (event *types.EventContribute, err error) {
	c, err := s.GetCampaign(campaign)
	if err != nil {
		return
	}
	if amount == 0 || amount < c.MinimumContribution {
		err = fmt.Errorf("%w: %d < %d", types.ErrBelowMinimum, amount, c.MinimumContribution)
		return
	}
	if c.Balance+amount < c.Balance || c.Raised+amount < c.Raised {
		err = fmt.Errorf("%w: balance overflow", types.ErrInvalidAmount)
		return
	}
	prior, member, err := s.Contribution(campaign, contributor)
	if err != nil {
		return
	}
	if checkOnly {
		return
	}

	if err = cust.Collect(ctx, campaign, contributor, amount); err != nil {
		err = fmt.Errorf("%w: %w", types.ErrFundsUnavailable, err)
		return
	}
	c.Balance += amount
	c.Raised += amount
	c.LastContributedAt = now
	if !member {
		c.ApproversCount++
	}
	s.setCampaign(c, ModifiedFlagMod)
	s.setContribution(campaign, contributor, prior+amount)

	event = &types.EventContribute{
		Campaign:       campaign,
		Contributor:    contributor,
		Amount:         amount,
		Balance:        c.Balance,
		NewApprover:    !member,
		ApproversCount: c.ApproversCount,
	}
	return
}

// CreateRequest appends a spending request. Only the manager may propose one.
func (s *State) CreateRequest(actor, campaign common.Address, params types.RequestParams, now int64, checkOnly bool) (event *types.EventCreateRequest, err error) {
	c, err := s.GetCampaign(campaign)
	if err != nil {
		return
	}
	if actor != c.Manager {
		err = fmt.Errorf("%w: %s is not the manager", types.ErrUnauthorized, actor.Hex())
		return
	}
	if params.Value == 0 {
		err = fmt.Errorf("%w: request value must be positive", types.ErrInvalidAmount)
		return
	}
	if params.Recipient == (common.Address{}) || params.Recipient == campaign {
		err = fmt.Errorf("%w: %s", types.ErrInvalidRecipient, params.Recipient.Hex())
		return
	}
	if checkOnly {
		return
	}

	r := &types.Request{
		Campaign:    campaign,
		Index:       c.RequestsCount,
		Description: params.Description,
		Value:       params.Value,
		Recipient:   params.Recipient,
		ProofLink:   params.ProofLink,
		RequestType: params.RequestType,
		CreatedAt:   now,
	}
	c.RequestsCount++
	s.setCampaign(c, ModifiedFlagMod)
	s.setRequest(r, ModifiedFlagNew)

	event = &types.EventCreateRequest{
		Campaign:  campaign,
		Request:   r.Index,
		Value:     r.Value,
		Recipient: r.Recipient,
	}
	return
}

// ApproveRequest records one approval from a registered contributor.
func (s *State) ApproveRequest(actor, campaign common.Address, index uint64, checkOnly bool) (event *types.EventApproveRequest, err error) {
	if _, err = s.GetCampaign(campaign); err != nil {
		return
	}
	r, err := s.GetRequest(campaign, index)
	if err != nil {
		return
	}
	if r.Complete {
		err = types.ErrRequestAlreadyComplete
		return
	}
	_, member, err := s.Contribution(campaign, actor)
	if err != nil {
		return
	}
	if !member {
		err = fmt.Errorf("%w: %s", types.ErrNotAContributor, actor.Hex())
		return
	}
	voted, err := s.HasVoted(campaign, index, actor)
	if err != nil {
		return
	}
	if voted {
		err = types.ErrAlreadyVoted
		return
	}
	if checkOnly {
		return
	}

	r.ApprovalCount++
	s.setRequest(r, ModifiedFlagMod)
	s.setVote(campaign, index, actor)

	event = &types.EventApproveRequest{
		Campaign:      campaign,
		Request:       index,
		Approver:      actor,
		ApprovalCount: r.ApprovalCount,
	}
	return
}

// FinalizeRequest pays out an approved request through custody. It commits
// nothing unless the transfer succeeds, and a request finalizes at most once.
func (s *State) FinalizeRequest(ctx context.Context, cust custody.Custody, actor, campaign common.Address, index uint64, now int64, checkOnly bool) (event *types.EventFinalizeRequest, err error) {
	c, err := s.GetCampaign(campaign)
	if err != nil {
		return
	}
	if actor != c.Manager {
		err = fmt.Errorf("%w: %s is not the manager", types.ErrUnauthorized, actor.Hex())
		return
	}
	r, err := s.GetRequest(campaign, index)
	if err != nil {
		return
	}
	if r.Complete {
		err = types.ErrRequestAlreadyComplete
		return
	}
	if !MajorityReached(r.ApprovalCount, c.ApproversCount) {
		err = fmt.Errorf("%w: %d of %d", types.ErrMajorityNotReached, r.ApprovalCount, c.ApproversCount)
		return
	}
	if r.Value > c.Balance {
		err = fmt.Errorf("%w: %d > %d", types.ErrInsufficientBalance, r.Value, c.Balance)
		return
	}
	if checkOnly {
		return
	}

	if err = cust.Transfer(ctx, campaign, r.Recipient, r.Value); err != nil {
		err = fmt.Errorf("%w: %w", types.ErrTransferFailed, err)
		return
	}
	c.Balance -= r.Value
	c.Released += r.Value
	r.Complete = true
	r.CompletedAt = now
	s.setCampaign(c, ModifiedFlagMod)
	s.setRequest(r, ModifiedFlagMod)
	s.logger.Info("request finalized", "campaign", campaign.Hex(), "request", index, "value", r.Value)

	event = &types.EventFinalizeRequest{
		Campaign:  campaign,
		Request:   index,
		Recipient: r.Recipient,
		Value:     r.Value,
		Balance:   c.Balance,
	}
	return
}

// Requests lists every request of a campaign in index order.
func (s *State) Requests(campaign common.Address) (res []*types.Request, err error) {
	c, err := s.GetCampaign(campaign)
	if err != nil {
		return
	}
	res = make([]*types.Request, 0, c.RequestsCount)
	for i := uint64(0); i < c.RequestsCount; i++ {
		r, err := s.GetRequest(campaign, i)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return
}
