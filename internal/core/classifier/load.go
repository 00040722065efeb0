package classifier

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tipos de comparação aceitos nas regras extras.
const (
	MatchRegex      = "regex"
	MatchContains   = "contains"
	MatchEquals     = "equals"
	MatchStartsWith = "starts_with"
	MatchEndsWith   = "ends_with"
)

// RuleSpec é a forma de uma regra no arquivo YAML. Division ausente vira Common;
// division vazia ("") deixa a célula em branco.
type RuleSpec struct {
	Match         string  `yaml:"match" json:"match"`
	MatchType     string  `yaml:"match_type" json:"match_type"`
	CaseSensitive bool    `yaml:"case_sensitive" json:"case_sensitive"`
	Division      *string `yaml:"division" json:"division"`
	Remark        *string `yaml:"remark" json:"remark"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Compile transforma a especificação numa Rule.
func (rs RuleSpec) Compile() (Rule, error) {
	if strings.TrimSpace(rs.Match) == "" {
		return Rule{}, fmt.Errorf("regra sem padrão")
	}

	var pattern string
	quoted := regexp.QuoteMeta(strings.TrimSpace(rs.Match))
	switch strings.ToLower(rs.MatchType) {
	case "", MatchContains:
		pattern = quoted
	case MatchRegex:
		pattern = rs.Match
	case MatchEquals:
		pattern = `^\s*` + quoted + `\s*$`
	case MatchStartsWith:
		pattern = `^\s*` + quoted
	case MatchEndsWith:
		pattern = quoted + `\s*$`
	default:
		return Rule{}, fmt.Errorf("tipo de comparação desconhecido %q na regra %q", rs.MatchType, rs.Match)
	}
	if !rs.CaseSensitive {
		pattern = `(?i)` + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("padrão inválido na regra %q: %w", rs.Match, err)
	}

	r := Rule{Match: re}
	if rs.Division != nil {
		r.Division = Static(*rs.Division)
	}
	if rs.Remark != nil {
		r.Remark = Static(*rs.Remark)
	}
	return r, nil
}

// CompileRules compila as especificações na ordem recebida.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := spec.Compile()
		if err != nil {
			return nil, fmt.Errorf("regra %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseRules lê regras no formato `rules: [...]`.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("erro ao ler as regras: %w", err)
	}
	return CompileRules(f.Rules)
}

// LoadRules lê regras extras de um arquivo YAML.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir %s: %w", path, err)
	}
	return ParseRules(data)
}
