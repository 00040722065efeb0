package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrSMTPNotConfigured indica que o envio foi pedido sem servidor SMTP.
var ErrSMTPNotConfigured = errors.New("servidor SMTP não configurado")

// Sender entrega uma mensagem já renderizada.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig descreve o servidor de saída.
type SMTPConfig struct {
	Host     string        `yaml:"host" json:"host"`
	Port     int           `yaml:"port" json:"port"`
	Username string        `yaml:"username" json:"username"`
	Password string        `yaml:"password" json:"-"`
	Secure   bool          `yaml:"secure" json:"secure"`
	Insecure bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// SMTPSender envia as mensagens por SMTP, abrindo uma conexão por envio.
type SMTPSender struct {
	cfg  SMTPConfig
	from Identity
}

// NewSMTPSender valida a configuração e devolve o sender.
func NewSMTPSender(cfg SMTPConfig, from Identity) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, ErrSMTPNotConfigured
	}
	if from.FromAddress == "" {
		return nil, fmt.Errorf("endereço de remetente não configurado")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg, from: from}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSConfig(&tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.Insecure}),
	}
	if s.cfg.Secure || s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("erro ao criar o cliente SMTP: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("erro ao enviar para %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.from.FromName, s.from.FromAddress); err != nil {
		return nil, fmt.Errorf("remetente inválido: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("destinatário inválido %q: %w", msg.To, err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(msg.CC...); err != nil {
			return nil, fmt.Errorf("cópia inválida: %w", err)
		}
	}
	if len(msg.BCC) > 0 {
		if err := m.Bcc(msg.BCC...); err != nil {
			return nil, fmt.Errorf("cópia oculta inválida: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetImportance(mail.ImportanceHigh)
	m.SetGenHeader(mail.Header("X-Recon-GSTIN"), msg.GSTIN)
	m.SetGenHeader(mail.Header("X-Recon-Message-ID"), msg.ID)
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// LogSender apenas registra as mensagens. Usado no modo de simulação.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("simulação de envio",
		zap.String("to", msg.To),
		zap.Strings("cc", msg.CC),
		zap.String("gstin", msg.GSTIN),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
	)
	return nil
}
