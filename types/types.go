package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventCreateCampaignType  = "create_campaign"
	EventContributeType      = "contribute"
	EventCreateRequestType   = "create_request"
	EventApproveRequestType  = "approve_request"
	EventFinalizeRequestType = "finalize_request"
)

type EventCreateCampaign struct {
	Campaign            common.Address `json:"campaign"`
	Index               uint64         `json:"index"`
	Manager             common.Address `json:"manager"`
	MinimumContribution uint64         `json:"minimumContribution"`
	Goal                uint64         `json:"goal"`
	Title               string         `json:"title"`
}

func EncodeEventCreateCampaign(event *EventCreateCampaign) abci.Event {
	return abci.Event{
		Type: EventCreateCampaignType,
		Attributes: []abci.EventAttribute{
			{Key: "campaign", Value: event.Campaign.Hex(), Index: true},
			{Key: "index", Value: fmt.Sprintf("%v", event.Index), Index: false},
			{Key: "manager", Value: event.Manager.Hex(), Index: true},
			{Key: "minimum", Value: fmt.Sprintf("%v", event.MinimumContribution), Index: false},
			{Key: "goal", Value: fmt.Sprintf("%v", event.Goal), Index: false},
			{Key: "title", Value: event.Title, Index: false},
		},
	}
}

func DecodeEventCreateCampaign(originEvent abci.Event) *EventCreateCampaign {
	event := &EventCreateCampaign{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "campaign":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Campaign = common.HexToAddress(v.Value)
		case "index":
			index, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Index = index
		case "manager":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Manager = common.HexToAddress(v.Value)
		case "minimum":
			minimum, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.MinimumContribution = minimum
		case "goal":
			goal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Goal = goal
		case "title":
			event.Title = v.Value
		}
	}
	return event
}

type EventContribute struct {
	Campaign       common.Address `json:"campaign"`
	Contributor    common.Address `json:"contributor"`
	Amount         uint64         `json:"amount"`
	Balance        uint64         `json:"balance"`
	NewApprover    bool           `json:"newApprover"`
	ApproversCount uint64         `json:"approversCount"`
}

func EncodeEventContribute(event *EventContribute) abci.Event {
	return abci.Event{
		Type: EventContributeType,
		Attributes: []abci.EventAttribute{
			{Key: "campaign", Value: event.Campaign.Hex(), Index: true},
			{Key: "contributor", Value: event.Contributor.Hex(), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "balance", Value: fmt.Sprintf("%v", event.Balance), Index: false},
			{Key: "newApprover", Value: fmt.Sprintf("%v", event.NewApprover), Index: false},
			{Key: "approvers", Value: fmt.Sprintf("%v", event.ApproversCount), Index: false},
		},
	}
}

func DecodeEventContribute(originEvent abci.Event) *EventContribute {
	event := &EventContribute{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "campaign":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Campaign = common.HexToAddress(v.Value)
		case "contributor":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Contributor = common.HexToAddress(v.Value)
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		case "balance":
			balance, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Balance = balance
		case "newApprover":
			newApprover, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.NewApprover = newApprover
		case "approvers":
			approvers, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ApproversCount = approvers
		}
	}
	return event
}

type EventCreateRequest struct {
	Campaign  common.Address `json:"campaign"`
	Request   uint64         `json:"request"`
	Value     uint64         `json:"value"`
	Recipient common.Address `json:"recipient"`
}

func EncodeEventCreateRequest(event *EventCreateRequest) abci.Event {
	return abci.Event{
		Type: EventCreateRequestType,
		Attributes: []abci.EventAttribute{
			{Key: "campaign", Value: event.Campaign.Hex(), Index: true},
			{Key: "request", Value: fmt.Sprintf("%v", event.Request), Index: true},
			{Key: "value", Value: fmt.Sprintf("%v", event.Value), Index: false},
			{Key: "recipient", Value: event.Recipient.Hex(), Index: false},
		},
	}
}

func DecodeEventCreateRequest(originEvent abci.Event) *EventCreateRequest {
	event := &EventCreateRequest{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "campaign":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Campaign = common.HexToAddress(v.Value)
		case "request":
			request, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Request = request
		case "value":
			value, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Value = value
		case "recipient":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Recipient = common.HexToAddress(v.Value)
		}
	}
	return event
}

type EventApproveRequest struct {
	Campaign      common.Address `json:"campaign"`
	Request       uint64         `json:"request"`
	Approver      common.Address `json:"approver"`
	ApprovalCount uint64         `json:"approvalCount"`
}

func EncodeEventApproveRequest(event *EventApproveRequest) abci.Event {
	return abci.Event{
		Type: EventApproveRequestType,
		Attributes: []abci.EventAttribute{
			{Key: "campaign", Value: event.Campaign.Hex(), Index: true},
			{Key: "request", Value: fmt.Sprintf("%v", event.Request), Index: true},
			{Key: "approver", Value: event.Approver.Hex(), Index: true},
			{Key: "approvals", Value: fmt.Sprintf("%v", event.ApprovalCount), Index: false},
		},
	}
}

func DecodeEventApproveRequest(originEvent abci.Event) *EventApproveRequest {
	event := &EventApproveRequest{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "campaign":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Campaign = common.HexToAddress(v.Value)
		case "request":
			request, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Request = request
		case "approver":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Approver = common.HexToAddress(v.Value)
		case "approvals":
			approvals, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ApprovalCount = approvals
		}
	}
	return event
}

type EventFinalizeRequest struct {
	Campaign  common.Address `json:"campaign"`
	Request   uint64         `json:"request"`
	Recipient common.Address `json:"recipient"`
	Value     uint64         `json:"value"`
	Balance   uint64         `json:"balance"`
}

func EncodeEventFinalizeRequest(event *EventFinalizeRequest) abci.Event {
	return abci.Event{
		Type: EventFinalizeRequestType,
		Attributes: []abci.EventAttribute{
			{Key: "campaign", Value: event.Campaign.Hex(), Index: true},
			{Key: "request", Value: fmt.Sprintf("%v", event.Request), Index: true},
			{Key: "recipient", Value: event.Recipient.Hex(), Index: true},
			{Key: "value", Value: fmt.Sprintf("%v", event.Value), Index: false},
			{Key: "balance", Value: fmt.Sprintf("%v", event.Balance), Index: false},
		},
	}
}

func DecodeEventFinalizeRequest(originEvent abci.Event) *EventFinalizeRequest {
	event := &EventFinalizeRequest{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "campaign":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Campaign = common.HexToAddress(v.Value)
		case "request":
			request, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Request = request
		case "recipient":
			if !common.IsHexAddress(v.Value) {
				return nil
			}
			event.Recipient = common.HexToAddress(v.Value)
		case "value":
			value, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Value = value
		case "balance":
			balance, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Balance = balance
		}
	}
	return event
}
