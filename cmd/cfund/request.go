package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Propose, approve and release spending requests",
}

type requestNewArguments struct {
	txArguments
	Value       uint64
	Recipient   string
	Description string
	ProofLink   string
	RequestType string
}

var requestNewArgs requestNewArguments

var requestNewCmd = &cobra.Command{
	Use:   "new <campaign>",
	Short: "Propose a spending request; only the campaign manager may",
	Args:  cobra.ExactArgs(1),
	RunE:  requestNewRun,
}

var requestVoteArgs txArguments

var requestApproveCmd = &cobra.Command{
	Use:   "approve <campaign> <index>",
	Short: "Approve a spending request as a contributor",
	Args:  cobra.ExactArgs(2),
	RunE:  requestApproveRun,
}

var requestFinalizeCmd = &cobra.Command{
	Use:   "finalize <campaign> <index>",
	Short: "Release an approved request's value to its recipient",
	Args:  cobra.ExactArgs(2),
	RunE:  requestFinalizeRun,
}

var requestQueryArgs queryArguments

var requestShowCmd = &cobra.Command{
	Use:   "show <campaign> <index>",
	Short: "Show a spending request",
	Args:  cobra.ExactArgs(2),
	RunE:  requestShowRun,
}

var requestListCmd = &cobra.Command{
	Use:   "list <campaign>",
	Short: "List the spending requests of a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  requestListRun,
}

func init() {
	txFlags(requestNewCmd, &requestNewArgs.txArguments)
	f := requestNewCmd.Flags()
	f.Uint64Var(&requestNewArgs.Value, "value", 0, "amount to release")
	f.StringVar(&requestNewArgs.Recipient, "recipient", "", "recipient identity")
	f.StringVar(&requestNewArgs.Description, "description", "", "what the funds are for")
	f.StringVar(&requestNewArgs.ProofLink, "proof", "", "link to supporting evidence")
	f.StringVar(&requestNewArgs.RequestType, "type", "", "request category")

	txFlags(requestApproveCmd, &requestVoteArgs)
	txFlags(requestFinalizeCmd, &requestVoteArgs)
	urlFlag(requestShowCmd, &requestQueryArgs.Url)
	urlFlag(requestListCmd, &requestQueryArgs.Url)

	requestCmd.AddCommand(requestNewCmd, requestApproveCmd, requestFinalizeCmd, requestShowCmd, requestListCmd)
}

func parseRequestArgs(args []string) (common.Address, uint64, error) {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return campaign, 0, err
	}
	index, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return campaign, 0, fmt.Errorf("invalid request index %q: %w", args[1], err)
	}
	return campaign, index, nil
}

func requestNewRun(cmd *cobra.Command, args []string) error {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	res, err := sendTx(&requestNewArgs.txArguments, &tx.CreateRequestTx{
		Campaign:    campaign,
		Description: requestNewArgs.Description,
		Value:       requestNewArgs.Value,
		Recipient:   requestNewArgs.Recipient,
		ProofLink:   requestNewArgs.ProofLink,
		RequestType: requestNewArgs.RequestType,
	})
	if err != nil {
		return err
	}
	if len(res.Data) == 8 {
		fmt.Printf("request: %d\n", binary.BigEndian.Uint64(res.Data))
	}
	return nil
}

func requestApproveRun(cmd *cobra.Command, args []string) error {
	campaign, index, err := parseRequestArgs(args)
	if err != nil {
		return err
	}
	_, err = sendTx(&requestVoteArgs, &tx.ApproveRequestTx{Campaign: campaign, Request: index})
	return err
}

func requestFinalizeRun(cmd *cobra.Command, args []string) error {
	campaign, index, err := parseRequestArgs(args)
	if err != nil {
		return err
	}
	_, err = sendTx(&requestVoteArgs, &tx.FinalizeRequestTx{Campaign: campaign, Request: index})
	return err
}

func requestShowRun(cmd *cobra.Command, args []string) error {
	campaign, index, err := parseRequestArgs(args)
	if err != nil {
		return err
	}
	cli, err := newClient(requestQueryArgs.Url)
	if err != nil {
		return err
	}
	var r types.Request
	if err = query(context.Background(), cli, "/request/", types.RequestKey(campaign, index), &r); err != nil {
		return err
	}
	return printJSON(r)
}

func requestListRun(cmd *cobra.Command, args []string) error {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	cli, err := newClient(requestQueryArgs.Url)
	if err != nil {
		return err
	}
	var rs []*types.Request
	if err = query(context.Background(), cli, "/requests/", campaign.Bytes(), &rs); err != nil {
		return err
	}
	return printJSON(rs)
}
