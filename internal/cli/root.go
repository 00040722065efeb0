package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/LuisEduardoPedra/gstrecon/internal/api/responses"
	"github.com/LuisEduardoPedra/gstrecon/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version e BuildDate são preenchidos via -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// app guarda o estado compartilhado pelos subcomandos.
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

// NewRootCmd monta a árvore de comandos. A saída dos comandos vai para out.
func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "gstrecon",
		Short: "Conciliação do livro de compras com o GSTR-2B",
		Long: `gstrecon compara o livro de compras com o GSTR-2B, gera a planilha de
conciliação, lista as divergências por fornecedor e envia os avisos por e-mail.

Exemplos:
  gstrecon reconcile --file periodo.xlsx
  gstrecon mismatches --book livro.xlsx --gstr gstr2b.csv --eps 5
  gstrecon notify --file periodo.xlsx --dry-run
  gstrecon classify --file extrato.xlsx`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "config.yaml", "arquivo de configuração (ausente usa os padrões)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "logs em nível debug")

	root.AddCommand(
		a.reconcileCmd(),
		a.mismatchesCmd(),
		a.notifyCmd(),
		a.classifyCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, err := responses.InitLogger(level, cfg.Development || a.verbose)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// Execute roda o comando raiz e encerra o processo em caso de erro.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Erro: %v\n", err)
		os.Exit(1)
	}
}
