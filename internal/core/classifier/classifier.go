package classifier

import (
	"errors"
	"strings"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"go.uber.org/zap"
)

// ErrHeaderNotFound indica que o extrato não tem a linha de cabeçalho com
// "Date" e "Narration".
var ErrHeaderNotFound = errors.New(`linha de cabeçalho com "Date" e "Narration" não encontrada`)

// SummarySheet é o nome da aba de resumo gerada junto com o extrato.
const SummarySheet = "Summary"

// Classification é o que uma regra atribuiu a um histórico.
type Classification struct {
	Division string `json:"division"`
	Remark   string `json:"remark"`
	Matched  bool   `json:"matched"`
}

// AnnotateStats conta o que aconteceu com as linhas do extrato.
type AnnotateStats struct {
	Rows       int `json:"rows"`
	Classified int `json:"classified"`
	Unmatched  int `json:"unmatched"`
	Manual     int `json:"manual"`
}

// Service classifica históricos de extrato bancário.
type Service interface {
	Classify(narration string) Classification
	// Annotate preenche as colunas Division e Remarks vazias, sem tocar no que
	// já foi digitado. A grade recebida não é alterada.
	Annotate(grid [][]string) ([][]string, AnnotateStats, error)
	// Summarize monta as tabelas de entradas e saídas por mês.
	Summarize(grid [][]string) (domain.Table, error)
	// Workbook devolve a aba anotada seguida da aba de resumo.
	Workbook(sheet string, grid [][]string) ([]domain.Sheet, AnnotateStats, error)
}

type service struct {
	rules  []Rule
	logger *zap.Logger
}

// NewService cria o classificador. As regras extras são avaliadas antes das
// embutidas.
func NewService(logger *zap.Logger, extra ...Rule) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := make([]Rule, 0, len(extra)+len(PriorityRules)+len(FallbackRules))
	rules = append(rules, extra...)
	rules = append(rules, PriorityRules...)
	rules = append(rules, FallbackRules...)
	return &service{rules: rules, logger: logger}
}

// Classify aplica a primeira regra que casar com o histórico.
func (s *service) Classify(narration string) Classification {
	for _, r := range s.rules {
		groups := r.Match.FindStringSubmatch(narration)
		if groups == nil {
			continue
		}
		return Classification{
			Division: r.Division.resolve(narration, groups, DivisionCommon),
			Remark:   r.Remark.resolve(narration, groups, ""),
			Matched:  true,
		}
	}
	return Classification{}
}

func (s *service) Annotate(grid [][]string) ([][]string, AnnotateStats, error) {
	var stats AnnotateStats
	if len(grid) == 0 {
		return grid, stats, nil
	}
	hdr := findHeaderRow(grid)
	if hdr < 0 {
		return nil, stats, ErrHeaderNotFound
	}

	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}

	header := out[hdr]
	divCol, remCol := indexOf(header, "DIVISION"), indexOf(header, "REMARKS")
	if divCol < 0 {
		divCol = len(header)
		header = append(header, "Division")
	}
	if remCol < 0 {
		remCol = len(header)
		header = append(header, "Remarks")
	}
	out[hdr] = header

	for r := hdr + 1; r < len(out); r++ {
		row := out[r]
		if len(row) < 2 || strings.TrimSpace(row[1]) == "" {
			continue
		}
		stats.Rows++
		for len(row) <= divCol || len(row) <= remCol {
			row = append(row, "")
		}

		hasDiv := strings.TrimSpace(row[divCol]) != ""
		hasRem := strings.TrimSpace(row[remCol]) != ""
		if hasDiv && hasRem {
			stats.Manual++
			out[r] = row
			continue
		}

		c := s.Classify(row[1])
		if !c.Matched {
			stats.Unmatched++
		} else {
			stats.Classified++
		}
		if !hasDiv {
			row[divCol] = c.Division
		}
		if !hasRem {
			row[remCol] = c.Remark
		}
		out[r] = row
	}

	s.logger.Info("extrato classificado",
		zap.Int("rows", stats.Rows),
		zap.Int("classified", stats.Classified),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("manual", stats.Manual))
	return out, stats, nil
}

func (s *service) Workbook(sheet string, grid [][]string) ([]domain.Sheet, AnnotateStats, error) {
	annotated, stats, err := s.Annotate(grid)
	if err != nil {
		return nil, stats, err
	}
	summary, err := s.Summarize(annotated)
	if err != nil {
		return nil, stats, err
	}

	if sheet == "" || strings.EqualFold(sheet, SummarySheet) {
		sheet = "Statement"
	}
	rows := make(domain.Table, len(annotated))
	for i, row := range annotated {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		rows[i] = cells
	}
	return []domain.Sheet{{Name: sheet, Rows: rows}, {Name: SummarySheet, Rows: summary}}, stats, nil
}

// findHeaderRow procura a linha cuja coluna A começa com DATE e a B contém
// NARRATION. Extratos costumam ter texto livre antes do cabeçalho.
func findHeaderRow(grid [][]string) int {
	for i, row := range grid {
		if len(row) < 2 {
			continue
		}
		if strings.HasPrefix(upper(row[0]), "DATE") && strings.Contains(upper(row[1]), "NARRATION") {
			return i
		}
	}
	return -1
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if upper(h) == name {
			return i
		}
	}
	return -1
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
