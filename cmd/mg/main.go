package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "magnate/internal/cli"
	"magnate/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()

	root := &cobra.Command{
		Use:          "mg",
		Short:        "Magnate simulation operator CLI",
		SilenceUsage: true,
	}

	root.AddCommand(
		newStateCmd(cfg),
		newAdvanceCmd(cfg),
		newOrdersCmd(cfg),
		newCandlesCmd(cfg),
		newCompanyCmd(cfg),
		newProduceCmd(cfg),
		newResearchCmd(cfg),
		newRecruitCmd(cfg),
		newBotsCmd(cfg),
		newAuditCmd(cfg),
		newAdjustCashCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg config.CLIConfig) *cl.Client {
	return cl.NewClient(cfg.APIBaseURL, cfg.AdminToken)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newStateCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current world tick state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).State(ctx)
			if err != nil {
				return err
			}
			renderState(out)
			return nil
		},
	}
}

func newAdvanceCmd(cfg config.CLIConfig) *cobra.Command {
	var ticks int64
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance the simulation by n ticks (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).AdvanceTicks(ctx, ticks)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("advanced to tick %v", out["current_tick"]))
			return nil
		},
	}
	cmd.Flags().Int64Var(&ticks, "ticks", 1, "number of ticks to advance")
	return cmd
}

func newOrdersCmd(cfg config.CLIConfig) *cobra.Command {
	orders := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage market orders",
	}

	var itemID, regionID int64
	book := &cobra.Command{
		Use:   "book",
		Short: "Show the open order book for an item and region",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).OrderBook(ctx, itemID, regionID)
			if err != nil {
				return err
			}
			return renderOrderBook(out)
		},
	}
	book.Flags().Int64Var(&itemID, "item", 0, "item id")
	book.Flags().Int64Var(&regionID, "region", 0, "region id")
	_ = book.MarkFlagRequired("item")
	_ = book.MarkFlagRequired("region")

	var company, side string
	var oItem, oRegion, qty, price int64
	place := &cobra.Command{
		Use:   "place",
		Short: "Place a limit order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).PlaceOrder(ctx, company, strings.ToUpper(side), oItem, oRegion, qty, price)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("order placed: %v", out["order_id"]))
			return nil
		},
	}
	place.Flags().StringVar(&company, "company", "", "company code")
	place.Flags().StringVar(&side, "side", "", "BUY or SELL")
	place.Flags().Int64Var(&oItem, "item", 0, "item id")
	place.Flags().Int64Var(&oRegion, "region", 0, "region id")
	place.Flags().Int64Var(&qty, "qty", 0, "quantity")
	place.Flags().Int64Var(&price, "price", 0, "limit price in cents")
	for _, f := range []string{"company", "side", "item", "region", "qty", "price"} {
		_ = place.MarkFlagRequired(f)
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if _, err := newClient(cfg).CancelOrder(ctx, orderID); err != nil {
				return err
			}
			printSuccess("order cancelled")
			return nil
		},
	}

	orders.AddCommand(book, place, cancelCmd)
	return orders
}

func newCandlesCmd(cfg config.CLIConfig) *cobra.Command {
	var itemID, regionID, fromTick, toTick int64
	cmd := &cobra.Command{
		Use:   "candles",
		Short: "Show per-tick OHLCV candles for an item and region",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Candles(ctx, itemID, regionID, fromTick, toTick)
			if err != nil {
				return err
			}
			return renderCandles(out)
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "item id")
	cmd.Flags().Int64Var(&regionID, "region", 0, "region id")
	cmd.Flags().Int64Var(&fromTick, "from", 0, "first tick")
	cmd.Flags().Int64Var(&toTick, "to", 0, "last tick (default: current)")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newCompanyCmd(cfg config.CLIConfig) *cobra.Command {
	company := &cobra.Command{
		Use:   "company <code>",
		Short: "Show a company's balances, inventory and open orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Company(ctx, args[0])
			if err != nil {
				return err
			}
			return renderCompany(out)
		},
	}

	var limit int64
	ledger := &cobra.Command{
		Use:   "ledger <code>",
		Short: "Show a company's recent ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).CompanyLedger(ctx, args[0], limit)
			if err != nil {
				return err
			}
			return renderLedger(out)
		},
	}
	ledger.Flags().Int64Var(&limit, "limit", 50, "max entries")
	company.AddCommand(ledger)
	return company
}

func newProduceCmd(cfg config.CLIConfig) *cobra.Command {
	var company string
	var recipeID, runs int64
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Start a production job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).StartProduction(ctx, company, recipeID, runs)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("production job started: %v", out["job_id"]))
			return nil
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company code")
	cmd.Flags().Int64Var(&recipeID, "recipe", 0, "recipe id")
	cmd.Flags().Int64Var(&runs, "runs", 1, "number of runs")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func newResearchCmd(cfg config.CLIConfig) *cobra.Command {
	var company string
	var nodeID int64
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Start a research job",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).StartResearch(ctx, company, nodeID)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("research job started: %v", out["job_id"]))
			return nil
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company code")
	cmd.Flags().Int64Var(&nodeID, "node", 0, "research node id")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func newRecruitCmd(cfg config.CLIConfig) *cobra.Command {
	var company, role string
	cmd := &cobra.Command{
		Use:   "recruit",
		Short: "Hire one employee of a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Recruit(ctx, company, strings.ToUpper(role))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("recruited employee: %v", out["employee_id"]))
			return nil
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company code")
	cmd.Flags().StringVar(&role, "role", "", "role code")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newBotsCmd(cfg config.CLIConfig) *cobra.Command {
	bots := &cobra.Command{
		Use:   "bots",
		Short: "Bot operations",
	}
	run := &cobra.Command{
		Use:   "run",
		Short: "Run one bot planning pass at the current tick (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).RunBots(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("bots placed %v orders, started %v production jobs",
				out["placed_orders"], out["started_production_jobs"]))
			return nil
		},
	}
	bots.AddCommand(run)
	return bots
}

func newAuditCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Audit all economic invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).Audit(ctx)
			if err != nil {
				return err
			}
			return renderAudit(out)
		},
	}
}

func newAdjustCashCmd(cfg config.CLIConfig) *cobra.Command {
	var delta int64
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust-cash <company-code>",
		Short: "Apply a manual cash adjustment (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			out, err := newClient(cfg).AdjustCash(ctx, args[0], delta, reason)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("new balance: %s", formatCents(asInt64(out["balance_cents"]))))
			return nil
		},
	}
	cmd.Flags().Int64Var(&delta, "delta", 0, "cash delta in cents (may be negative)")
	cmd.Flags().StringVar(&reason, "reason", "", "operator note")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}
