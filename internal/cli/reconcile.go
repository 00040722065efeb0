package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/notify"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/reconcile"
	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// unsetEps marca --eps não informado; a tolerância vem da configuração.
const unsetEps = -1

// inputFlags são as opções de entrada comuns a reconcile, mismatches e notify.
type inputFlags struct {
	file string
	book string
	gstr string
	eps  float64
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "planilha única com as abas do livro e do GSTR-2B")
	cmd.Flags().StringVar(&f.book, "book", "", "planilha do livro de compras")
	cmd.Flags().StringVar(&f.gstr, "gstr", "", "planilha do GSTR-2B")
	cmd.Flags().Float64Var(&f.eps, "eps", unsetEps, "tolerância em rúpias (padrão: a da configuração)")
	cmd.MarkFlagsMutuallyExclusive("file", "book")
	cmd.MarkFlagsMutuallyExclusive("file", "gstr")
	cmd.MarkFlagsRequiredTogether("book", "gstr")
	cmd.MarkFlagsOneRequired("file", "book")
}

func (a *app) reconcileCmd() *cobra.Command {
	var in inputFlags
	var out string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Gera a planilha de conciliação",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.run(in)
			if err != nil {
				return err
			}
			data, err := converter.NewService(a.logger).WriteWorkbook(result.Sheets)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("erro ao gravar %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Planilha gravada em %s (%d fornecedores com divergência, %d sem e-mail)\n",
				out, len(result.Mismatches), len(result.Stats.SkippedNoContact))
			return nil
		},
	}
	in.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "reconciliation_output.xlsx", "arquivo de saída")
	return cmd
}

func (a *app) mismatchesCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "mismatches",
		Short: "Lista as divergências por fornecedor em JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.run(in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	in.bind(cmd)
	return cmd
}

func (a *app) notifyCmd() *cobra.Command {
	var in inputFlags
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Envia um e-mail para cada fornecedor com divergência",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sender notify.Sender = notify.NewLogSender(a.logger)
			if !dryRun {
				smtp, err := notify.NewSMTPSender(a.cfg.Email.SMTP, a.cfg.Email.Identity)
				if err != nil {
					return fmt.Errorf("envio real indisponível (use --dry-run): %w", err)
				}
				sender = smtp
			}

			result, err := a.run(in)
			if err != nil {
				return err
			}

			svc := notify.NewService(sender, a.cfg.Email.Identity, a.cfg.Email.Dispatch, a.logger)
			summary := svc.Dispatch(cmd.Context(), result.Mismatches)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if summary.EmailsFailed > 0 {
				return fmt.Errorf("%d e-mail(s) não enviados", summary.EmailsFailed)
			}
			return nil
		},
	}
	in.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "apenas registra as mensagens, sem enviar")
	return cmd
}

// run lê as planilhas e executa a conciliação.
func (a *app) run(in inputFlags) (*domain.Result, error) {
	cfg := a.cfg.ReconcileConfig()
	if in.eps != unsetEps {
		cfg = cfg.WithTolerance(in.eps)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("--eps inválido: %w", err)
	}

	conv := converter.NewService(a.logger)
	var book, gstr []domain.RawRow
	if in.file != "" {
		tables, err := readSheets(conv, in.file, a.cfg.Reconcile.BookSheet, a.cfg.Reconcile.StatementSheet)
		if err != nil {
			return nil, err
		}
		book, gstr = tables[0], tables[1]
	} else {
		if in.book == "" || in.gstr == "" {
			return nil, errors.New("informe --file ou --book e --gstr")
		}
		b, err := readSheets(conv, in.book, a.cfg.Reconcile.BookSheet)
		if err != nil {
			return nil, err
		}
		g, err := readSheets(conv, in.gstr, a.cfg.Reconcile.StatementSheet)
		if err != nil {
			return nil, err
		}
		book, gstr = b[0], g[0]
	}

	result, err := reconcile.NewService(a.logger).Reconcile(cfg, book, gstr)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("execução concluída", zap.String("run_id", result.RunID))
	return result, nil
}

func readSheets(conv converter.Service, path string, sheets ...string) ([][]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir %s: %w", path, err)
	}
	defer f.Close()
	return conv.ReadSheets(f, filepath.Base(path), sheets...)
}
