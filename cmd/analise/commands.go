package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"analise-fundamental/internal/app"
	"analise-fundamental/models"
)

var acaoCmd = &cobra.Command{
	Use:   "acao TICKER...",
	Short: "Print the document for one or more tickers",
	Long: `Print the fundamentals document for each ticker.

A single ticker prints its document; several print the /api/acoes envelope.

Examples:
  analise acao AAPL
  analise acao aapl msft ko`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application := buildApp(ctx, cfg)
		defer application.Shutdown(ctx)

		tickers := app.NormalizeTickers(args)
		if len(tickers) == 0 {
			return models.ErrInvalidInput.WithMsg("Nenhum ticker válido fornecido")
		}
		if len(tickers) == 1 {
			doc, err := application.GetStock(ctx, tickers[0])
			if err != nil {
				return fmt.Errorf("%s: %w", tickers[0], err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		}
		return printJSON(cmd.OutOrStdout(), application.GetStocks(ctx, tickers))
	},
}

var tesouroCmd = &cobra.Command{
	Use:   "tesouro",
	Short: "Print the US 10-year treasury yield",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application := buildApp(ctx, cfg)
		defer application.Shutdown(ctx)

		if all, _ := cmd.Flags().GetBool("todas"); all {
			return printJSON(cmd.OutOrStdout(), application.AllRates(ctx))
		}
		return printJSON(cmd.OutOrStdout(), application.TenYearRate(ctx))
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the provider response cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "limpar",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		application := buildApp(ctx, cfg)
		defer application.Shutdown(ctx)

		removed, err := application.CleanCache(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d expired entries removed (%s)\n", removed, cfg.Cache.Backend)
		return nil
	},
}

func init() {
	tesouroCmd.Flags().Bool("todas", false, "print every tenor instead of the 10-year rate")
	cacheCmd.AddCommand(cacheCleanCmd)
}
