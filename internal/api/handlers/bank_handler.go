package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/LuisEduardoPedra/gstrecon/internal/api/responses"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/classifier"
	"github.com/LuisEduardoPedra/gstrecon/internal/core/converter"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const classifiedOutput = "statement_classified.xlsx"

// BankHandler classifica extratos bancários enviados pelo usuário.
type BankHandler struct {
	converter  converter.Service
	classifier classifier.Service
	logger     *zap.Logger
}

func NewBankHandler(conv converter.Service, cls classifier.Service, logger *zap.Logger) *BankHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BankHandler{converter: conv, classifier: cls, logger: logger}
}

// HandleClassify devolve o extrato com Division e Remarks preenchidos e a aba
// de resumo mensal. O campo opcional "sheet" escolhe a aba; vazio usa a primeira.
func (h *BankHandler) HandleClassify(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		responses.Error(c, statusFor(fmt.Errorf("%w: %w", errBadInput, err)), "Extrato (file) não encontrado ou inválido")
		return
	}
	file, err := header.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o extrato")
		return
	}
	defer file.Close()

	grid, sheet, err := h.converter.ReadGrid(file, header.Filename, c.PostForm("sheet"))
	if err != nil {
		responses.Error(c, statusFor(err), "Não foi possível ler o extrato", err.Error())
		return
	}

	sheets, stats, err := h.classifier.Workbook(sheet, grid)
	if err != nil {
		responses.Error(c, statusFor(err), "Erro ao classificar o extrato", err.Error())
		return
	}

	out, err := h.converter.WriteWorkbook(sheets)
	if err != nil {
		h.logger.Error("erro ao gerar a planilha do extrato", zap.Error(err))
		responses.Error(c, http.StatusInternalServerError, "Erro ao gerar a planilha", err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+classifiedOutput)
	c.Header("X-Bank-Rows", strconv.Itoa(stats.Rows))
	c.Header("X-Bank-Classified", strconv.Itoa(stats.Classified))
	c.Header("X-Bank-Unmatched", strconv.Itoa(stats.Unmatched))
	c.Data(http.StatusOK, xlsxContentType, out)
}
