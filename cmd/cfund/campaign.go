package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/calehh/cfund-app/tx"
	"github.com/calehh/cfund-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Create, fund and inspect campaigns",
}

type campaignNewArguments struct {
	txArguments
	Params   types.CampaignParams
	Duration time.Duration
}

var campaignNewArgs campaignNewArguments

var campaignNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a campaign managed by the signing key",
	Args:  cobra.ExactArgs(0),
	RunE:  campaignNewRun,
}

var campaignContributeArgs txArguments

var campaignContributeCmd = &cobra.Command{
	Use:   "contribute <campaign> <amount>",
	Short: "Contribute to a campaign from the signing key's balance",
	Args:  cobra.ExactArgs(2),
	RunE:  campaignContributeRun,
}

type queryArguments struct {
	Url    string
	Offset uint64
	Limit  uint64
}

var campaignQueryArgs queryArguments

var campaignShowCmd = &cobra.Command{
	Use:   "show <campaign>",
	Short: "Show a campaign summary",
	Args:  cobra.ExactArgs(1),
	RunE:  campaignShowRun,
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed campaigns in creation order",
	Args:  cobra.ExactArgs(0),
	RunE:  campaignListRun,
}

var campaignContributorCmd = &cobra.Command{
	Use:   "contributor <campaign> <identity>",
	Short: "Show whether an identity contributed to a campaign",
	Args:  cobra.ExactArgs(2),
	RunE:  campaignContributorRun,
}

func init() {
	txFlags(campaignNewCmd, &campaignNewArgs.txArguments)
	f := campaignNewCmd.Flags()
	f.Uint64Var(&campaignNewArgs.Params.MinimumContribution, "minimum", 0, "minimum contribution")
	f.Uint64Var(&campaignNewArgs.Params.Goal, "goal", 0, "funding goal")
	f.DurationVar(&campaignNewArgs.Duration, "duration", 0, "time until the deadline, zero for none")
	f.StringVar(&campaignNewArgs.Params.Title, "title", "", "campaign title")
	f.StringVar(&campaignNewArgs.Params.Description, "description", "", "campaign description")
	f.StringVar(&campaignNewArgs.Params.Category, "category", "", "campaign category")
	f.StringVar(&campaignNewArgs.Params.Tagline, "tagline", "", "campaign tagline")
	f.StringVar(&campaignNewArgs.Params.Creator, "creator", "", "display name of the creator")
	f.StringVar(&campaignNewArgs.Params.CoverRef, "cover", "", "cover image reference")

	txFlags(campaignContributeCmd, &campaignContributeArgs)

	for _, c := range []*cobra.Command{campaignShowCmd, campaignListCmd, campaignContributorCmd} {
		urlFlag(c, &campaignQueryArgs.Url)
	}
	campaignListCmd.Flags().Uint64Var(&campaignQueryArgs.Offset, "offset", 0, "skip this many campaigns")
	campaignListCmd.Flags().Uint64Var(&campaignQueryArgs.Limit, "limit", 20, "maximum campaigns to list, zero for all")

	campaignCmd.AddCommand(campaignNewCmd, campaignContributeCmd, campaignShowCmd, campaignListCmd, campaignContributorCmd)
}

func campaignNewRun(cmd *cobra.Command, args []string) error {
	params := campaignNewArgs.Params
	if campaignNewArgs.Duration > 0 {
		params.Deadline = time.Now().Add(campaignNewArgs.Duration).Unix()
	}
	res, err := sendTx(&campaignNewArgs.txArguments, &tx.CreateCampaignTx{Params: params})
	if err != nil {
		return err
	}
	fmt.Printf("campaign: %s\n", common.BytesToAddress(res.Data).Hex())
	return nil
}

func campaignContributeRun(cmd *cobra.Command, args []string) error {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	_, err = sendTx(&campaignContributeArgs, &tx.ContributeTx{Campaign: campaign, Amount: amount})
	return err
}

func campaignShowRun(cmd *cobra.Command, args []string) error {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	cli, err := newClient(campaignQueryArgs.Url)
	if err != nil {
		return err
	}
	var c types.Campaign
	if err = query(context.Background(), cli, "/campaign/", campaign.Bytes(), &c); err != nil {
		return err
	}
	return printJSON(c.Summary())
}

func campaignListRun(cmd *cobra.Command, args []string) error {
	cli, err := newClient(campaignQueryArgs.Url)
	if err != nil {
		return err
	}
	page, err := json.Marshal(types.PageQuery{Offset: campaignQueryArgs.Offset, Limit: campaignQueryArgs.Limit})
	if err != nil {
		return err
	}
	var list types.CampaignList
	if err = query(context.Background(), cli, "/campaigns/", page, &list); err != nil {
		return err
	}
	return printJSON(list)
}

func campaignContributorRun(cmd *cobra.Command, args []string) error {
	campaign, err := parseAddressArg(args[0])
	if err != nil {
		return err
	}
	who, err := parseAddressArg(args[1])
	if err != nil {
		return err
	}
	cli, err := newClient(campaignQueryArgs.Url)
	if err != nil {
		return err
	}
	var status types.ContributorStatus
	if err = query(context.Background(), cli, "/contributor/", types.ContributorKey(campaign, who), &status); err != nil {
		return err
	}
	return printJSON(status)
}
