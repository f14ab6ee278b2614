package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgpai22/txsim"
)

func simulateCommand() *cobra.Command {
	var draft draftFlags
	cmd := &cobra.Command{
		Use:   "simulate [draft-cbor-hex]",
		Short: "Resolve a draft and print the execution budget of each script it runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draftHex, err := draft.draft(args)
			if err != nil {
				return err
			}
			rt, err := newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.cleanup()
			ctx, cancel, err := withTimeout(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer cancel()

			resolution, result, err := rt.resolver.Simulate(ctx, draftHex)
			if err != nil {
				return err
			}
			for _, ref := range resolution.Unresolved() {
				rt.logger.Warn("simulating with unresolved input", zap.String("utxo", ref.String()))
			}
			if result.Status == txsim.SimulationFailed {
				return errors.New("simulation failed: " + result.Reason)
			}
			budgets := result.Budgets
			if budgets == nil {
				budgets = []txsim.Budget{}
			}
			return json.NewEncoder(os.Stdout).Encode(budgets)
		},
	}
	draft.register(cmd)
	return cmd
}
