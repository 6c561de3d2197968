package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"parts-depot/internal/domain"
	"parts-depot/internal/logger"
	"parts-depot/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ruleInputs are the flags shared by commands that evaluate rules offline.
type ruleInputs struct {
	productsFile string
	rulesFile    string
	at           string
}

func (in *ruleInputs) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.productsFile, "products", "", "JSON file with an array of products (required)")
	cmd.Flags().StringVar(&in.rulesFile, "rules", "", "JSON file with an array of price rules (required)")
	cmd.Flags().StringVar(&in.at, "at", "", "Evaluation instant in RFC3339 (default now)")
	cmd.MarkFlagRequired("products")
	cmd.MarkFlagRequired("rules")
}

func (in *ruleInputs) load(log *zap.Logger) ([]domain.Product, []domain.PriceRule, time.Time, error) {
	now := time.Now()
	if in.at != "" {
		parsed, err := time.Parse(time.RFC3339, in.at)
		if err != nil {
			return nil, nil, time.Time{}, fmt.Errorf("invalid --at: %w", err)
		}
		now = parsed
	}

	var products []domain.Product
	if err := readJSONFile(in.productsFile, &products); err != nil {
		return nil, nil, time.Time{}, err
	}
	var rules []domain.PriceRule
	if err := readJSONFile(in.rulesFile, &rules); err != nil {
		return nil, nil, time.Time{}, err
	}

	log.Debug("Loaded pricing inputs",
		zap.Int("products", len(products)),
		zap.Int("rules", len(rules)),
		zap.Int("active_rules", len(pricing.SelectActiveRules(rules, now))),
		zap.Time("at", now),
	)
	return products, rules, now, nil
}

// cli carries state shared by every subcommand.
type cli struct {
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	var logLevel string
	app := &cli{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "pricectl",
		Short: "Evaluate storefront price rules offline",
		Long: `pricectl runs the storefront pricing engine against products and price rules
exported as JSON, without a database. Use it to preview a rule set before
publishing it or to explain why a product ends up at a given price.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewWithWriter("development", logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			app.log = log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(app.applyCmd(), app.explainCmd(), gradeCmd())
	return root
}

func (app *cli) applyCmd() *cobra.Command {
	var (
		inputs ruleInputs
		output string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Price every product against the active rules",
		Example: `  pricectl apply --products products.json --rules rules.json
  pricectl apply --products products.json --rules rules.json --at 2025-12-24T00:00:00Z --output table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, rules, now, err := inputs.load(app.log)
			if err != nil {
				return err
			}

			priced := pricing.ApplyPriceRulesAt(products, rules, now)

			switch strings.ToLower(output) {
			case "json":
				return writeJSON(cmd.OutOrStdout(), priced)
			case "table":
				return writePricedTable(cmd.OutOrStdout(), priced)
			default:
				return fmt.Errorf("invalid output format: %s (use 'json' or 'table')", output)
			}
		},
	}
	inputs.register(cmd)
	cmd.Flags().StringVar(&output, "output", "json", "Output format: json or table")
	return cmd
}

func (app *cli) explainCmd() *cobra.Command {
	var (
		inputs    ruleInputs
		productID string
	)

	cmd := &cobra.Command{
		Use:     "explain",
		Short:   "Show each rule step applied to one product",
		Example: `  pricectl explain --product 3f2a... --products products.json --rules rules.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, rules, now, err := inputs.load(app.log)
			if err != nil {
				return err
			}

			for _, p := range products {
				if p.ID == productID {
					return writeJSON(cmd.OutOrStdout(), pricing.Explain(p, rules, now))
				}
			}
			return fmt.Errorf("product %s not found in %s", productID, inputs.productsFile)
		},
	}
	inputs.register(cmd)
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.MarkFlagRequired("product")
	return cmd
}

type gradeResult struct {
	Grade           domain.CustomerGrade `json:"grade"`
	Rate            decimal.Decimal      `json:"rate"`
	Price           decimal.Decimal      `json:"price"`
	DiscountedPrice decimal.Decimal      `json:"discounted_price"`
}

func gradeCmd() *cobra.Command {
	var price, grade string

	cmd := &cobra.Command{
		Use:     "grade",
		Short:   "Apply the flat customer-grade discount to a price",
		Example: `  pricectl grade --price 45000 --grade A`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price: %w", err)
			}
			g, err := domain.ParseCustomerGrade(strings.ToUpper(grade))
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), gradeResult{
				Grade:           g,
				Rate:            pricing.GradeDiscountRate(g),
				Price:           amount,
				DiscountedPrice: pricing.CalculateDiscountedPrice(amount, g),
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "Price to discount (required)")
	cmd.Flags().StringVar(&grade, "grade", "", "Customer grade: A, B or C (required)")
	cmd.MarkFlagRequired("price")
	cmd.MarkFlagRequired("grade")
	return cmd
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePricedTable(out io.Writer, products []domain.Product) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tBASE\tPRICE")
	for _, p := range products {
		base := p.Price
		if p.OriginalPrice != nil {
			base = *p.OriginalPrice
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, base.String(), p.Price.String())
	}
	return w.Flush()
}
