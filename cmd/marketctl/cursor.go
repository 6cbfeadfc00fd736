package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

var (
	cursorContract string
	cursorBlock    uint64
)

// cursorCmd is the parent command for block cursor operations
var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or move the per-contract block cursors",
}

var cursorGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the last reconciled block of each contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addresses := contractAddresses(cfg, cursorContract)
		if len(addresses) == 0 {
			return errors.New("no contract given and none configured")
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)
		cursors := store.NewCursorStore(db)

		for _, address := range addresses {
			block, found, err := cursors.GetBlockCursor(cmd.Context(), cfg.Ethereum.ChainID, address)
			if err != nil {
				return err
			}
			if !found {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: no cursor\n", cfg.Ethereum.ChainID, address)
				continue
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d\n", cfg.Ethereum.ChainID, address, block)
		}
		return nil
	},
}

var cursorSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Move the block cursor of a contract",
	Long: `Move the block cursor of a contract.

The reconciler resumes at the block after the cursor, so rewinding replays purchases.
Replays are safe: already completed transactions are left unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(cursorContract) {
			return fmt.Errorf("invalid --contract: %q", cursorContract)
		}
		if err := requireYes("move the block cursor"); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		address := contractAddresses(cfg, cursorContract)[0]
		if err := store.NewCursorStore(db).SetBlockCursor(cmd.Context(), cfg.Ethereum.ChainID, address, cursorBlock); err != nil {
			return err
		}

		logger.Info("Block cursor moved",
			zap.String("chain", string(cfg.Ethereum.ChainID)),
			zap.String("contract", address),
			zap.Uint64("block", cursorBlock))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d\n", cfg.Ethereum.ChainID, address, cursorBlock)
		return err
	},
}

func init() {
	cursorGetCmd.Flags().StringVar(&cursorContract, "contract", "", "Contract address (defaults to every configured contract)")

	cursorSetCmd.Flags().StringVar(&cursorContract, "contract", "", "Contract address")
	cursorSetCmd.Flags().Uint64Var(&cursorBlock, "block", 0, "Last reconciled block")
	cursorSetCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Confirm moving the cursor (non-interactive)")
	_ = cursorSetCmd.MarkFlagRequired("contract")
	_ = cursorSetCmd.MarkFlagRequired("block")

	cursorCmd.AddCommand(cursorGetCmd, cursorSetCmd)
	rootCmd.AddCommand(cursorCmd)
}
