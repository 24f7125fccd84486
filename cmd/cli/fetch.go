package cli

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"portfolioapi/internal/httpx"
	"portfolioapi/internal/price"
	"portfolioapi/internal/price/krwsource"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "fetch",
	Short: "Fetch the current USD/KRW rate once and print it as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		client := httpx.New(8 * time.Second)
		chain := &price.Chain{Sources: krwsource.DefaultChain(client)}

		quote, attempts, err := chain.Fetch(ctx)
		if err != nil {
			// Print the per-source diagnostics so a failed run is debuggable.
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(attempts)
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(quote)
	},
}

func init() { //nolint:gochecknoinits
	rootCmd.AddCommand(fetchCmd)
}
