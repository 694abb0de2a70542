package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncBillsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-bills",
		Short: "Fetch recent bills once, analyse new ones and store them",
		Args:  cobra.NoArgs,
		RunE:  runSyncBills,
	}
}

func runSyncBills(cmd *cobra.Command, _ []string) error {
	log := newLogger(cmd, false)

	ctx, cancel := signalContext(cmd.Context(), log)
	defer cancel()

	cfg, err := loadConfig(ctx, log)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer a.closeDatabase(context.WithoutCancel(ctx), db)

	if err = a.billsUpdater(a.assemblyClient(), db).Update(ctx); err != nil {
		return fmt.Errorf("sync bills: %w", err)
	}

	return nil
}
