package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/notify"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/reconcile"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config reúne todas as opções da aplicação.
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	Development bool            `yaml:"development"`
	Server      ServerConfig    `yaml:"server"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	Email       EmailConfig     `yaml:"email"`
	Bank        BankConfig      `yaml:"bank"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ReconcileConfig define a tolerância, as abas e as colunas das planilhas.
type ReconcileConfig struct {
	Tolerance      float64           `yaml:"tolerance"`
	BookSheet      string            `yaml:"book_sheet"`
	StatementSheet string            `yaml:"statement_sheet"`
	Columns        reconcile.Columns `yaml:"columns"`
}

type EmailConfig struct {
	SMTP     notify.SMTPConfig     `yaml:"smtp"`
	Identity notify.Identity       `yaml:"identity"`
	Dispatch notify.DispatchConfig `yaml:"dispatch"`
}

// BankConfig guarda as regras extras do classificador de extratos.
type BankConfig struct {
	RulesFile string                `yaml:"rules_file"`
	Rules     []classifier.RuleSpec `yaml:"rules"`
}

// Default devolve a configuração usada quando nada é informado.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:           "8080",
			MaxUploadMB:    32,
			AllowedOrigins: []string{"*"},
		},
		Reconcile: ReconcileConfig{
			Tolerance:      reconcile.DefaultTolerance,
			BookSheet:      "Zoho Data",
			StatementSheet: "GSTR-2B",
			Columns:        reconcile.DefaultColumns(),
		},
		Email: EmailConfig{
			SMTP: notify.SMTPConfig{
				Port:    587,
				Timeout: 30 * time.Second,
			},
			Identity: notify.Identity{
				FromName:     "GST Reconciliation",
				Department:   "Accounts Department",
				ResponseDays: 7,
			},
			Dispatch: notify.DispatchConfig{
				Concurrency:    4,
				RatePerSecond:  2,
				Burst:          1,
				MaxRetries:     3,
				InitialBackoff: 2 * time.Second,
			},
		},
	}
}

// Load aplica, nesta ordem, os padrões, o arquivo YAML (quando existe), o .env
// e as variáveis de ambiente. Um caminho vazio pula o arquivo.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("erro ao ler %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("erro ao interpretar %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("EMAIL_HOST", &c.Email.SMTP.Host)
	str("EMAIL_USER", &c.Email.SMTP.Username)
	str("EMAIL_PASSWORD", &c.Email.SMTP.Password)
	str("EMAIL_FROM_ADDRESS", &c.Email.Identity.FromAddress)
	str("EMAIL_FROM_NAME", &c.Email.Identity.FromName)
	str("ACCOUNTS_EMAIL", &c.Email.Identity.ContactEmail)
	list("EMAIL_CC", &c.Email.Identity.CC)
	list("EMAIL_BCC", &c.Email.Identity.BCC)

	if v, ok := lookup("RECON_TOLERANCE"); ok && v != "" {
		eps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("RECON_TOLERANCE inválido %q: %w", v, err)
		}
		if !reconcile.ValidTolerance(eps) {
			return fmt.Errorf("RECON_TOLERANCE inválido %q: precisa ser finito e não negativo", v)
		}
		c.Reconcile.Tolerance = eps
	}
	if v, ok := lookup("EMAIL_PORT"); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("EMAIL_PORT inválido %q: %w", v, err)
		}
		c.Email.SMTP.Port = port
	}
	if v, ok := lookup("EMAIL_SECURE"); ok && v != "" {
		secure, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("EMAIL_SECURE inválido %q: %w", v, err)
		}
		c.Email.SMTP.Secure = secure
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate verifica as opções que quebrariam uma execução.
func (c *Config) Validate() error {
	if err := c.ReconcileConfig().Validate(); err != nil {
		return err
	}
	if c.Reconcile.BookSheet == "" || c.Reconcile.StatementSheet == "" {
		return errors.New("nomes das abas do livro e do GSTR-2B são obrigatórios")
	}
	if c.Server.Port == "" {
		return errors.New("porta do servidor não configurada")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb deve ser positivo: %d", c.Server.MaxUploadMB)
	}
	d := c.Email.Dispatch
	if d.Concurrency <= 0 || d.MaxRetries <= 0 {
		return fmt.Errorf("concorrência e tentativas de envio devem ser positivas (%d, %d)", d.Concurrency, d.MaxRetries)
	}
	if d.RatePerSecond < 0 || d.InitialBackoff < 0 {
		return errors.New("taxa e espera entre tentativas não podem ser negativas")
	}
	if _, err := classifier.CompileRules(c.Bank.Rules); err != nil {
		return fmt.Errorf("regras do extrato: %w", err)
	}
	return nil
}

// ReconcileConfig converte a seção de conciliação na configuração do motor.
func (c *Config) ReconcileConfig() reconcile.Config {
	return reconcile.Config{Tolerance: c.Reconcile.Tolerance, Columns: c.Reconcile.Columns}
}

// BankRules devolve as regras extras: primeiro as do arquivo, depois as
// declaradas na própria configuração.
func (c *Config) BankRules() ([]classifier.Rule, error) {
	var rules []classifier.Rule
	if c.Bank.RulesFile != "" {
		fromFile, err := classifier.LoadRules(c.Bank.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fromFile...)
	}
	inline, err := classifier.CompileRules(c.Bank.Rules)
	if err != nil {
		return nil, err
	}
	return append(rules, inline...), nil
}

// MaxUploadBytes devolve o limite de upload em bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
