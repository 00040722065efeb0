package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/LuisEduardoPedra/gstrecon/internal/api/responses"
	"github.com/LuisEduardoPedra/gstrecon/internal/config"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/notify"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/reconcile"
	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	reconcileOutput = "reconciliation_output.xlsx"
)

// errBadInput marca erros causados pelo que o cliente enviou.
var errBadInput = errors.New("entrada inválida")

// ReconcileHandler atende as rotas de conciliação e de notificação.
type ReconcileHandler struct {
	converter  converter.Service
	reconciler reconcile.Service
	notifier   notify.Service
	cfg        config.ReconcileConfig
	logger     *zap.Logger
}

func NewReconcileHandler(conv converter.Service, rec reconcile.Service, notifier notify.Service, cfg config.ReconcileConfig, logger *zap.Logger) *ReconcileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileHandler{
		converter:  conv,
		reconciler: rec,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleReconcile devolve a planilha com as oito abas de conciliação.
func (h *ReconcileHandler) HandleReconcile(c *gin.Context) {
	result, ok := h.run(c)
	if !ok {
		return
	}

	out, err := h.converter.WriteWorkbook(result.Sheets)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro ao gerar a planilha", err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+reconcileOutput)
	c.Header("X-Recon-Run-Id", result.RunID)
	c.Header("X-Recon-Book-Invoices", strconv.Itoa(result.Stats.BookInvoices))
	c.Header("X-Recon-Gstr-Invoices", strconv.Itoa(result.Stats.StatementInvoices))
	c.Header("X-Recon-Mismatches", strconv.Itoa(len(result.Mismatches)))
	c.Header("X-Recon-Skipped", strconv.Itoa(len(result.Stats.SkippedNoContact)))
	c.Data(http.StatusOK, xlsxContentType, out)
}

// HandleMismatches devolve as divergências agrupadas por fornecedor, em JSON.
func (h *ReconcileHandler) HandleMismatches(c *gin.Context) {
	result, ok := h.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleNotify concilia e envia um e-mail para cada fornecedor com divergência.
func (h *ReconcileHandler) HandleNotify(c *gin.Context) {
	if h.notifier == nil {
		responses.Error(c, http.StatusServiceUnavailable, "Envio de e-mails não configurado")
		return
	}
	result, ok := h.run(c)
	if !ok {
		return
	}

	summary := h.notifier.Dispatch(c.Request.Context(), result.Mismatches)
	c.JSON(http.StatusOK, gin.H{
		"run_id":             result.RunID,
		"skipped_no_contact": result.Stats.SkippedNoContact,
		"summary":            summary,
	})
}

// run lê os arquivos, executa a conciliação e já responde em caso de erro.
func (h *ReconcileHandler) run(c *gin.Context) (*domain.Result, bool) {
	cfg := reconcile.Config{Tolerance: h.cfg.Tolerance, Columns: h.cfg.Columns}
	if raw := strings.TrimSpace(c.PostForm("eps")); raw != "" {
		eps, err := strconv.ParseFloat(raw, 64)
		if err != nil || !reconcile.ValidTolerance(eps) {
			responses.Error(c, http.StatusBadRequest, "Tolerância (eps) inválida", raw)
			return nil, false
		}
		cfg = cfg.WithTolerance(eps)
	}

	book, gstr, err := h.readInputs(c)
	if err != nil {
		h.fail(c, "Não foi possível ler as planilhas", err)
		return nil, false
	}

	result, err := h.reconciler.Reconcile(cfg, book, gstr)
	if err != nil {
		h.fail(c, "Erro ao conciliar as planilhas", err)
		return nil, false
	}
	return result, true
}

// readInputs aceita um arquivo único com as duas abas (file) ou um arquivo
// por lado (bookFile e gstrFile).
func (h *ReconcileHandler) readInputs(c *gin.Context) ([]domain.RawRow, []domain.RawRow, error) {
	if _, err := c.MultipartForm(); err != nil {
		return nil, nil, fmt.Errorf("%w: formulário multipart: %w", errBadInput, err)
	}
	if header, err := c.FormFile("file"); err == nil {
		tables, err := h.readFile(header, h.cfg.BookSheet, h.cfg.StatementSheet)
		if err != nil {
			return nil, nil, err
		}
		return tables[0], tables[1], nil
	}

	bookHeader, err := c.FormFile("bookFile")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: envie 'file' ou 'bookFile' e 'gstrFile'", errBadInput)
	}
	gstrHeader, err := c.FormFile("gstrFile")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: arquivo do GSTR-2B (gstrFile) não encontrado", errBadInput)
	}

	book, err := h.readFile(bookHeader, h.cfg.BookSheet)
	if err != nil {
		return nil, nil, err
	}
	gstr, err := h.readFile(gstrHeader, h.cfg.StatementSheet)
	if err != nil {
		return nil, nil, err
	}
	return book[0], gstr[0], nil
}

func (h *ReconcileHandler) readFile(header *multipart.FileHeader, sheets ...string) ([][]domain.RawRow, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("não foi possível abrir %s: %w", header.Filename, err)
	}
	defer file.Close()
	return h.converter.ReadSheets(file, header.Filename, sheets...)
}

func (h *ReconcileHandler) fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	responses.Error(c, status, message, err.Error())
}

// statusFor devolve 400 para erros de entrada e 500 para o resto.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadInput),
		errors.Is(err, reconcile.ErrEmptyTable),
		errors.Is(err, reconcile.ErrMissingColumns),
		errors.Is(err, converter.ErrSheetNotFound),
		errors.Is(err, converter.ErrUnsupportedFormat),
		errors.Is(err, converter.ErrInvalidFile),
		errors.Is(err, classifier.ErrHeaderNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
