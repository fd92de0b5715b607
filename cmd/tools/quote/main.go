package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-jasa/internal/pricing"
)

type options struct {
	policyFile string
	months     int
	asJSON     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print advertising prices for a pricing policy",
		Long: `Print the advertising price table.

Without --months every offered term is listed. --policy loads a YAML price list
with the same keys as AD_PRICING_FILE.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.policyFile, "policy", "", "YAML pricing policy (defaults to the launch price list)")
	cmd.Flags().IntVarP(&opts.months, "months", "m", 0, "quote a single contract length")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func run(out io.Writer, opts options) error {
	policy := pricing.DefaultPolicy()
	if opts.policyFile != "" {
		raw, err := os.ReadFile(opts.policyFile)
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		if err := yaml.Unmarshal(raw, &policy); err != nil {
			return fmt.Errorf("parse policy: %w", err)
		}
	}
	calc, err := pricing.NewCalculator(policy)
	if err != nil {
		return err
	}

	var quotes []pricing.Quote
	if opts.months > 0 {
		q, err := calc.QuoteFor(opts.months)
		if err != nil {
			return err
		}
		quotes = []pricing.Quote{q}
	} else {
		quotes = calc.Table()
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(quotes)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTHS\tMONTHLY\tSUPPLY\tVAT\tTOTAL\tDISCOUNT\t")
	for _, q := range quotes {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d%%\t\n",
			q.Months, q.MonthlySupplyPrice, q.TotalSupplyPrice, q.TaxAmount, q.TotalPrice, q.DiscountRatePercent)
	}
	return tw.Flush()
}
