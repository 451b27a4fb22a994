package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/pkg/history"
	"github.com/goliatone/go-drivalyze/pkg/predict"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your most recent predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			gate, closeGate, err := a.openGate(ctx, false)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()
			identity := gate.Identity()
			if identity.UserID == "" {
				return errNotSignedIn
			}

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, store.Close) }()

			records, err := store.Recent(ctx, identity.UserID, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				a.printf("No predictions yet.\n")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tBRAND\tMODEL\tYEAR\tFUEL\tTRANSMISSION\tPRICE")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					rec.Timestamp.Local().Format("2006-01-02 15:04"),
					rec.Brand, rec.Model, rec.Year, rec.FuelType, rec.Transmission,
					predict.FormatINR(drivalyze.Price(rec.PredictedPrice)),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "number of records to show")
	return cmd
}
