package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/migrations"
	"github.com/stockwatch/stockwatch-backend/pkg/config"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
)

const serviceName = "stockwatch-admin"

// connect loads the shared configuration and opens the database
func connect() (*database.DB, *logger.Logger, error) {
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the embedded database schema" }
func (*migrateCmd) Usage() string {
	return `stockwatch-admin migrate

  Applies every embedded migration that has not been recorded yet. Safe to
  run repeatedly.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, log, err := connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db.DB)
	if err != nil {
		log.Error().Err(err).Strs("applied", applied).Msg("migration failed")
		return subcommands.ExitFailure
	}

	if len(applied) == 0 {
		fmt.Println("schema is up to date")
		return subcommands.ExitSuccess
	}
	for _, v := range applied {
		fmt.Printf("applied %s\n", v)
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	itemID int64
	asJSON bool
}

func (*reconcileCmd) Name() string { return "reconcile" }
func (*reconcileCmd) Synopsis() string {
	return "compare stored stock balances with the movement ledger"
}
func (*reconcileCmd) Usage() string {
	return `stockwatch-admin reconcile [-item <id>] [-json]

  Recomputes every balance as opening + delivered - used - wasted and
  reports items whose stored quantity differs. With -item the item's
  movements are also replayed in order. Exits with status 1 on drift.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.itemID, "item", 0, "Reconcile a single item and replay its movements.")
	f.BoolVar(&c.asJSON, "json", false, "Print the report as JSON.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, log, err := connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	reporting := service.NewReportingService(
		repository.NewReportRepository(db),
		repository.NewDeliveryRepository(db),
		repository.NewUsageRepository(db),
		nil, 0, service.DefaultExpiryDays, log,
	)

	var itemID *int64
	if c.itemID > 0 {
		itemID = &c.itemID
	}

	report, err := reporting.Reconcile(ctx, itemID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		decimal.MarshalJSONWithoutQuotes = true
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	} else {
		printReport(report)
	}

	if !report.Consistent {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printReport(report *service.ReconciliationReport) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tItem\tOpening\tDelivered\tUsed\tWasted\tExpected\tOn hand\tDrift\t")
	for _, it := range report.Items {
		if it.Consistent && report.ItemsChecked > 1 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			it.ItemID, it.ItemName,
			it.OpeningQuantity, it.Delivered, it.Used, it.Wasted,
			it.Expected, it.QuantityOnHand, it.Drift)
		if it.ReplayError != "" {
			fmt.Fprintf(tw, "\t%s\t\t\t\t\t\t\t\t\n", it.ReplayError)
		}
	}
	tw.Flush()

	fmt.Printf("\n%d items checked, %d drifting\n", report.ItemsChecked, report.ItemsDrifting)
}
