package main

import (
	"github.com/spf13/cobra"
)

func newAuthorizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "authorize <path>",
		Short:   "Report whether the current session may open a view",
		Example: "  drivalyze authorize /predict\n  drivalyze authorize '/profile?tab=security'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			gate, closeGate, err := a.openGate(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() { err = joinClose(err, closeGate) }()

			decision := gate.Authorize(args[0])
			if decision.Allow {
				a.printf("allow\n")
				return nil
			}
			a.printf("redirect %s\n", decision.Redirect)
			return nil
		},
	}
}
