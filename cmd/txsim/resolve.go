package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

type resolveOutput struct {
	Inputs     string   `json:"inputs"`
	Outputs    string   `json:"outputs"`
	Unresolved []string `json:"unresolved,omitempty"`
}

func resolveCommand() *cobra.Command {
	var (
		draft  draftFlags
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [draft-cbor-hex]",
		Short: "Print the CBOR of the inputs a draft consumes and the outputs they resolve to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draftHex, err := draft.draft(args)
			if err != nil {
				return err
			}
			rt, err := newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.cleanup()
			ctx, cancel, err := withTimeout(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			defer cancel()

			resolution, err := rt.resolver.Resolve(ctx, draftHex)
			if err != nil {
				return err
			}
			if strict {
				if err := resolution.Err(); err != nil {
					return err
				}
			}
			out := resolveOutput{
				Inputs:  resolution.InputsHex(),
				Outputs: resolution.OutputsHex(),
			}
			for _, ref := range resolution.Unresolved() {
				out.Unresolved = append(out.Unresolved, ref.String())
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	draft.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when an input cannot be resolved")
	return cmd
}
