package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

var (
	orphansContract string
	orphansAll      bool
	orphansLimit    int
	orphansOffset   uint64
)

// orphansCmd is the parent command for orphan event operations
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Inspect ledger purchases that matched no pending transaction",
}

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orphan events in ledger order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		filter := store.OrphanEventFilter{
			IncludeResolved: orphansAll,
			Limit:           orphansLimit,
			Offset:          orphansOffset,
		}
		if orphansContract != "" {
			address := contractAddresses(cfg, orphansContract)[0]
			filter.ContractAddress = &address
		}

		orphans, err := store.NewPGStore(db).GetOrphanEvents(cmd.Context(), filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tCONTRACT\tBLOCK\tLOG\tTX HASH\tTOKEN\tBUYER\tATTEMPTS\tREASON\tRESOLVED")
		for _, o := range orphans {
			resolved := "-"
			if o.ResolvedAt != nil {
				resolved = o.ResolvedAt.UTC().Format(time.RFC3339)
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				o.ID, o.ContractAddress, o.BlockNumber, o.LogIndex, o.TransactionHash,
				o.TokenID, o.BuyerAddress, o.Attempts, o.Reason, resolved)
		}
		return w.Flush()
	},
}

func init() {
	orphansListCmd.Flags().StringVar(&orphansContract, "contract", "", "Only list events of this contract")
	orphansListCmd.Flags().BoolVar(&orphansAll, "all", false, "Include resolved events")
	orphansListCmd.Flags().IntVar(&orphansLimit, "limit", 50, "Maximum number of events")
	orphansListCmd.Flags().Uint64Var(&orphansOffset, "offset", 0, "Number of events to skip")

	orphansCmd.AddCommand(orphansListCmd)
	rootCmd.AddCommand(orphansCmd)
}
