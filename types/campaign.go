package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type Campaign struct {
	Address             common.Address `json:"address"`
	Index               uint64         `json:"index"`
	Manager             common.Address `json:"manager"`
	MinimumContribution uint64         `json:"minimum_contribution"`
	Goal                uint64         `json:"goal"`
	Deadline            int64          `json:"deadline"`
	Balance             uint64         `json:"balance"`
	Raised              uint64         `json:"raised"`
	Released            uint64         `json:"released"`
	ApproversCount      uint64         `json:"approvers_count"`
	RequestsCount       uint64         `json:"requests_count"`
	CreatedAt           int64          `json:"created_at"`
	LastContributedAt   int64          `json:"last_contributed_at"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Category            string         `json:"category"`
	Tagline             string         `json:"tagline"`
	Creator             string         `json:"creator"`
	CoverRef            string         `json:"cover_ref"`
}

func (c *Campaign) Clone() *Campaign {
	n := *c
	return &n
}

// Summary is the read-only view rendered by the campaign page.
func (c *Campaign) Summary() Summary {
	return Summary{
		Address:             c.Address,
		Title:               c.Title,
		Description:         c.Description,
		Category:            c.Category,
		Tagline:             c.Tagline,
		Creator:             c.Creator,
		CoverRef:            c.CoverRef,
		Goal:                c.Goal,
		Deadline:            c.Deadline,
		MinimumContribution: c.MinimumContribution,
		Balance:             c.Balance,
		ApproversCount:      c.ApproversCount,
		RequestsCount:       c.RequestsCount,
		Manager:             c.Manager,
		CreatedAt:           c.CreatedAt,
		LastContributedAt:   c.LastContributedAt,
	}
}

type Summary struct {
	Address             common.Address `json:"address"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Category            string         `json:"category"`
	Tagline             string         `json:"tagline"`
	Creator             string         `json:"creator"`
	CoverRef            string         `json:"cover_ref"`
	Goal                uint64         `json:"goal"`
	Deadline            int64          `json:"deadline"`
	MinimumContribution uint64         `json:"minimum_contribution"`
	Balance             uint64         `json:"balance"`
	ApproversCount      uint64         `json:"approvers_count"`
	RequestsCount       uint64         `json:"requests_count"`
	Manager             common.Address `json:"manager"`
	CreatedAt           int64          `json:"created_at"`
	LastContributedAt   int64          `json:"last_contributed_at"`
}

type Request struct {
	Campaign      common.Address `json:"campaign"`
	Index         uint64         `json:"index"`
	Description   string         `json:"description"`
	Value         uint64         `json:"value"`
	Recipient     common.Address `json:"recipient"`
	ProofLink     string         `json:"proof_link"`
	RequestType   string         `json:"request_type"`
	ApprovalCount uint64         `json:"approval_count"`
	Complete      bool           `json:"complete"`
	CreatedAt     int64          `json:"created_at"`
	CompletedAt   int64          `json:"completed_at"`
}

func (r *Request) Clone() *Request {
	n := *r
	return &n
}

// CampaignParams are the creation arguments of a campaign. The manager is
// always the creating identity.
type CampaignParams struct {
	MinimumContribution uint64 `json:"minimum_contribution"`
	Goal                uint64 `json:"goal"`
	Deadline            int64  `json:"deadline"`
	Title               string `json:"title"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	Tagline             string `json:"tagline"`
	Creator             string `json:"creator"`
	CoverRef            string `json:"cover_ref"`
}

type RequestParams struct {
	Description string         `json:"description"`
	Value       uint64         `json:"value"`
	Recipient   common.Address `json:"recipient"`
	ProofLink   string         `json:"proof_link"`
	RequestType string         `json:"request_type"`
}

type PageQuery struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type CampaignList struct {
	Total     uint64    `json:"total"`
	Campaigns []Summary `json:"campaigns"`
}

type ContributorStatus struct {
	Campaign    common.Address `json:"campaign"`
	Identity    common.Address `json:"identity"`
	Contributor bool           `json:"contributor"`
	Amount      uint64         `json:"amount"`
}

// RequestKey is the query payload addressing one request: the campaign
// address followed by the big-endian request index.
func RequestKey(campaign common.Address, index uint64) []byte {
	return binary.BigEndian.AppendUint64(campaign.Bytes(), index)
}

func ParseRequestKey(dat []byte) (campaign common.Address, index uint64, err error) {
	if len(dat) != common.AddressLength+8 {
		err = fmt.Errorf("%w: request key length %d", ErrInvalidTx, len(dat))
		return
	}
	campaign = common.BytesToAddress(dat[:common.AddressLength])
	index = binary.BigEndian.Uint64(dat[common.AddressLength:])
	return
}

// ContributorKey is the campaign address followed by the identity.
func ContributorKey(campaign, who common.Address) []byte {
	return append(campaign.Bytes(), who.Bytes()...)
}

func ParseContributorKey(dat []byte) (campaign, who common.Address, err error) {
	if len(dat) != 2*common.AddressLength {
		err = fmt.Errorf("%w: contributor key length %d", ErrInvalidTx, len(dat))
		return
	}
	campaign = common.BytesToAddress(dat[:common.AddressLength])
	who = common.BytesToAddress(dat[common.AddressLength:])
	return
}
