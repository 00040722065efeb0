package responses

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorBody é o corpo JSON devolvido em caso de erro.
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// InitLogger cria o logger do processo e o instala como global.
func InitLogger(level string, development bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("nível de log inválido %q: %w", level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("erro ao criar o logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Error aborta a requisição com o status e a mensagem informados.
func Error(c *gin.Context, status int, message string, details ...string) {
	zap.L().Debug("requisição com erro",
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("error", message),
		zap.Strings("details", details),
	)
	c.AbortWithStatusJSON(status, ErrorBody{Error: message, Details: details})
}
