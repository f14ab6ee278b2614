package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/txsim"
)

func orderCommand() *cobra.Command {
	var position string
	cmd := &cobra.Command{
		Use:   "order <hash#index>...",
		Short: "Print UTxO references in ledger (lexicographic) order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]txsim.UtxoRef, 0, len(args))
			for _, arg := range args {
				ref, err := txsim.ParseUtxoRef(arg)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			ordered := make([]string, 0, len(refs))
			for _, ref := range txsim.SortUtxoRefs(refs) {
				ordered = append(ordered, ref.String())
			}

			out := cmd.OutOrStdout()
			if position != "" {
				ref, err := txsim.ParseUtxoRef(position)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, txsim.IndexInOrder(ordered, ref.String()))
				return nil
			}
			for _, id := range ordered {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&position, "index-of", "", "print the position of this reference instead of the sorted list")
	return cmd
}
