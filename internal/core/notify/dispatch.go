package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DispatchConfig controla paralelismo, ritmo e novas tentativas dos envios.
type DispatchConfig struct {
	Concurrency    int           `yaml:"concurrency" json:"concurrency"`
	RatePerSecond  float64       `yaml:"rate_per_second" json:"rate_per_second"`
	Burst          int           `yaml:"burst" json:"burst"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		Concurrency:    4,
		RatePerSecond:  2,
		Burst:          1,
		MaxRetries:     3,
		InitialBackoff: time.Second,
	}
}

// Delivery é o resultado do envio para um fornecedor.
type Delivery struct {
	GSTIN     string `json:"gstin"`
	TradeName string `json:"tradeName"`
	Email     string `json:"email"`
	Success   bool   `json:"success"`
	Invoices  int    `json:"invoicesCount"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
}

// Summary consolida uma rodada de notificações.
type Summary struct {
	TotalClients    int        `json:"totalClients"`
	EmailsSent      int        `json:"emailsSent"`
	EmailsFailed    int        `json:"emailsFailed"`
	MismatchesCount int        `json:"mismatchesCount"`
	Details         []Delivery `json:"details"`
	Recommendations []string   `json:"recommendations"`
}

type Service interface {
	Dispatch(ctx context.Context, records []domain.MismatchRecord) Summary
}

type service struct {
	sender   Sender
	identity Identity
	cfg      DispatchConfig
	logger   *zap.Logger
}

func NewService(sender Sender, identity Identity, cfg DispatchConfig, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultDispatchConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.InitialBackoff < 0 {
		cfg.InitialBackoff = 0
	}
	return &service{sender: sender, identity: identity, cfg: cfg, logger: logger}
}

// Dispatch envia um e-mail por fornecedor. A falha de um envio não interrompe
// os demais; o resultado de cada um fica em Details, na ordem de entrada.
func (s *service) Dispatch(ctx context.Context, records []domain.MismatchRecord) Summary {
	details := make([]Delivery, len(records))

	limit := rate.Inf
	if s.cfg.RatePerSecond > 0 {
		limit = rate.Limit(s.cfg.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, s.cfg.Burst)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			details[i] = s.deliver(ctx, limiter, rec)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{TotalClients: len(records), Details: details}
	for _, d := range details {
		sum.MismatchesCount += d.Invoices
		if d.Success {
			sum.EmailsSent++
		} else {
			sum.EmailsFailed++
		}
	}
	sum.Recommendations = recommendations(sum)

	s.logger.Info("notificações processadas",
		zap.Int("total", sum.TotalClients),
		zap.Int("sent", sum.EmailsSent),
		zap.Int("failed", sum.EmailsFailed),
	)
	return sum
}

func (s *service) deliver(ctx context.Context, limiter *rate.Limiter, rec domain.MismatchRecord) Delivery {
	d := Delivery{
		GSTIN:     rec.GSTIN,
		TradeName: rec.TradeName,
		Email:     rec.Email,
		Invoices:  len(rec.Entries),
	}

	msg, err := Render(rec, s.identity)
	if err != nil {
		d.Error = err.Error()
		s.logger.Error("erro ao montar o e-mail", zap.String("gstin", rec.GSTIN), zap.Error(err))
		return d
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, backoff(s.cfg.InitialBackoff, attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		d.Attempts = attempt
		lastErr = s.sender.Send(ctx, msg)
		if lastErr == nil {
			d.Success = true
			s.logger.Info("e-mail enviado",
				zap.String("gstin", rec.GSTIN),
				zap.String("to", rec.Email),
				zap.Int("attempt", attempt),
			)
			return d
		}
		s.logger.Warn("falha no envio, nova tentativa",
			zap.String("gstin", rec.GSTIN),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	d.Error = fmt.Sprintf("falha após %d tentativa(s): %v", d.Attempts, lastErr)
	s.logger.Error("e-mail não enviado", zap.String("gstin", rec.GSTIN), zap.Error(lastErr))
	return d
}

// backoff devolve initial * 2^(n-1) para a n-ésima espera.
func backoff(initial time.Duration, n int) time.Duration {
	if n < 1 {
		return 0
	}
	return initial << (n - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func recommendations(sum Summary) []string {
	var out []string
	if sum.TotalClients == 0 {
		return []string{"No mismatches with contact details were found; nothing to notify."}
	}
	if sum.EmailsFailed > 0 {
		out = append(out, fmt.Sprintf("%d email(s) failed; check the SMTP settings and the recipient addresses.", sum.EmailsFailed))
	}
	if sum.EmailsSent > 0 {
		out = append(out, "Follow up with suppliers that do not answer within the response deadline.")
	}
	out = append(out, "Re-run the reconciliation after suppliers file their corrections.")
	return out
}
