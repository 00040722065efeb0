package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/spf13/cobra"
)

func (a *app) classifyCmd() *cobra.Command {
	var file, sheet, out, rulesFile string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classifica um extrato bancário e gera o resumo mensal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rulesFile != "" {
				a.cfg.Bank.RulesFile = rulesFile
			}
			rules, err := a.cfg.BankRules()
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("erro ao abrir %s: %w", file, err)
			}
			defer f.Close()

			conv := converter.NewService(a.logger)
			grid, name, err := conv.ReadGrid(f, filepath.Base(file), sheet)
			if err != nil {
				return err
			}

			sheets, stats, err := classifier.NewService(a.logger, rules...).Workbook(name, grid)
			if err != nil {
				return err
			}
			data, err := conv.WriteWorkbook(sheets)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("erro ao gravar %s: %w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Extrato gravado em %s (%d linhas, %d classificadas, %d sem regra, %d manuais)\n",
				out, stats.Rows, stats.Classified, stats.Unmatched, stats.Manual)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "extrato (xlsx, xls ou csv)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "aba do extrato (padrão: a primeira)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "arquivo YAML com regras extras")
	cmd.Flags().StringVarP(&out, "out", "o", "statement_classified.xlsx", "arquivo de saída")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
