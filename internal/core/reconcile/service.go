package reconcile

import (
	"errors"
	"fmt"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyTable indica que um dos lados não tem nenhuma linha.
	ErrEmptyTable = errors.New("tabela sem linhas")
	// ErrMissingColumns indica que nenhuma linha traz GSTIN nem número da nota.
	ErrMissingColumns = errors.New("colunas obrigatórias ausentes")
)

// Service executa uma conciliação completa entre livro de compras e GSTR-2B.
type Service interface {
	Reconcile(cfg Config, book, gstr []domain.RawRow) (*domain.Result, error)
}

type service struct {
	logger *zap.Logger
}

// NewService cria o serviço; logger nil desliga os logs.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{logger: logger}
}

func (s *service) Reconcile(cfg Config, book, gstr []domain.RawRow) (*domain.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuração inválida: %w", err)
	}
	if err := checkStructure("livro de compras", book, cfg.Columns); err != nil {
		return nil, err
	}
	if err := checkStructure("GSTR-2B", gstr, cfg.Columns); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	log.Info("conciliação iniciada",
		zap.Int("book_rows", len(book)),
		zap.Int("gstr_rows", len(gstr)),
		zap.Float64("tolerance", cfg.Tolerance))

	bookNorm := Normalize(book, cfg.Columns)
	gstrNorm := Normalize(gstr, cfg.Columns)

	names := mergeNames(gstrNorm.NameByGSTIN, bookNorm.NameByGSTIN)
	emails := mergeFirst(bookNorm.EmailByGSTIN, gstrNorm.EmailByGSTIN)

	bookGrouped := GroupByKey(bookNorm.Rows)
	gstrGrouped := GroupByKey(gstrNorm.Rows)

	extraction := ExtractMismatches(bookGrouped, gstrGrouped, emails, names, cfg.Tolerance)
	for _, gstin := range extraction.SkippedNoContact {
		log.Warn("fornecedor com divergência sem e-mail, não será notificado",
			zap.String("gstin", gstin),
			zap.Int("discrepancies", extraction.SkippedEntries[gstin]))
	}
	if extraction.Unattributed > 0 {
		log.Warn("notas divergentes sem GSTIN ignoradas na notificação", zap.Int("discrepancies", extraction.Unattributed))
	}

	result := &domain.Result{
		RunID:      runID,
		Sheets:     BuildSheets(bookGrouped, gstrGrouped, names, cfg.Tolerance),
		Mismatches: extraction.Records,
		Stats: domain.RunStats{
			BookRows:          len(book),
			StatementRows:     len(gstr),
			BookInvoices:      len(bookGrouped),
			StatementInvoices: len(gstrGrouped),
			Anomalies:         bookNorm.Anomalies.Add(gstrNorm.Anomalies),
			SkippedNoContact:  extraction.SkippedNoContact,
			Unattributed:      extraction.Unattributed,
		},
	}
	if result.Mismatches == nil {
		result.Mismatches = []domain.MismatchRecord{}
	}
	if result.Stats.SkippedNoContact == nil {
		result.Stats.SkippedNoContact = []string{}
	}

	log.Info("conciliação concluída",
		zap.Int("book_invoices", len(bookGrouped)),
		zap.Int("gstr_invoices", len(gstrGrouped)),
		zap.Int("suppliers_with_mismatch", len(extraction.Records)),
		zap.Int("skipped_no_contact", len(extraction.SkippedNoContact)),
		zap.Int("anomalies", result.Stats.Anomalies.Total()))

	return result, nil
}

// checkStructure falha quando a tabela está vazia ou quando nenhuma linha traz
// a coluna de GSTIN nem a de número da nota.
func checkStructure(side string, rows []domain.RawRow, cols Columns) error {
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", side, ErrEmptyTable)
	}
	lookup := newFieldLookup()
	for _, r := range rows {
		if lookup.has(r, cols.GSTIN) || lookup.has(r, cols.InvoiceNumber) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w (esperado %q ou %q)", side, ErrMissingColumns, cols.GSTIN, cols.InvoiceNumber)
}

// mergeNames parte de base e deixa override sobrescrever quando tiver nome.
func mergeNames(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// mergeFirst mantém o valor de primary e só completa as lacunas com secondary.
func mergeFirst(primary, secondary map[string]string) map[string]string {
	out := make(map[string]string, len(primary)+len(secondary))
	for k, v := range secondary {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range primary {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
