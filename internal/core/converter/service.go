package converter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/schollz/closestmatch"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrSheetNotFound indica que a aba pedida não existe na planilha.
	ErrSheetNotFound = errors.New("aba não encontrada")
	// ErrUnsupportedFormat indica extensão de arquivo não suportada.
	ErrUnsupportedFormat = errors.New("formato de arquivo não suportado")
	// ErrInvalidFile indica arquivo corrompido ou que não é do formato da extensão.
	ErrInvalidFile = errors.New("arquivo inválido")
)

// Service lê planilhas enviadas (xlsx, xls, csv) e gera a planilha de saída.
type Service interface {
	// ReadSheets lê as abas pedidas, na mesma ordem, como linhas indexadas pelo
	// cabeçalho da primeira linha.
	ReadSheets(file io.Reader, filename string, sheets ...string) ([][]domain.RawRow, error)
	// ReadGrid lê uma aba como grade crua. Nome vazio pega a primeira aba.
	ReadGrid(file io.Reader, filename, sheet string) ([][]string, string, error)
	// WriteWorkbook grava as tabelas como abas de um xlsx, na ordem recebida.
	WriteWorkbook(sheets []domain.Sheet) ([]byte, error)
}

type service struct {
	logger *zap.Logger
}

// NewService cria uma nova instância do serviço de conversão.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{logger: logger}
}

// workbook é a visão comum dos três formatos: nomes das abas e suas grades.
// Um csv vira uma aba única (single), que atende a qualquer nome pedido.
type workbook struct {
	names  []string
	grids  map[string][][]string
	single bool
}

func (w *workbook) grid(name string) ([][]string, error) {
	g, ok := w.grids[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return g, nil
}

func (svc *service) ReadSheets(file io.Reader, filename string, sheets ...string) ([][]domain.RawRow, error) {
	wb, err := svc.open(file, filename)
	if err != nil {
		return nil, err
	}
	out := make([][]domain.RawRow, 0, len(sheets))
	used := make(map[string]string, len(sheets))
	for _, want := range sheets {
		name, err := svc.resolveSheet(wb, want)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if prev, dup := used[name]; dup && !wb.single && !strings.EqualFold(prev, want) {
			return nil, fmt.Errorf("%s: %w: %q e %q apontam para a mesma aba %q", filename, ErrSheetNotFound, prev, want, name)
		}
		used[name] = want
		grid, err := wb.grid(name)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler a aba %q: %w", name, err)
		}
		out = append(out, rowsFromGrid(grid))
	}
	return out, nil
}

func (svc *service) ReadGrid(file io.Reader, filename, sheet string) ([][]string, string, error) {
	wb, err := svc.open(file, filename)
	if err != nil {
		return nil, "", err
	}
	name, err := svc.resolveSheet(wb, sheet)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", filename, err)
	}
	grid, err := wb.grid(name)
	if err != nil {
		return nil, "", fmt.Errorf("erro ao ler a aba %q: %w", name, err)
	}
	return grid, name, nil
}

func (svc *service) open(file io.Reader, filename string) (*workbook, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		return svc.openXLSX(file)
	case ".xls":
		return svc.openXLS(file)
	case ".csv":
		return svc.openCSV(file, filename)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func (svc *service) openXLSX(file io.Reader) (*workbook, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: erro ao abrir o xlsx: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	// Lê tudo de uma vez para poder fechar o arquivo aqui.
	wb := &workbook{names: f.GetSheetList(), grids: make(map[string][][]string)}
	for _, name := range wb.names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("erro ao ler a aba %q: %w", name, err)
		}
		wb.grids[name] = rows
	}
	return wb, nil
}

func (svc *service) openXLS(file io.Reader) (*workbook, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	book, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		// Há sistemas que exportam xlsx com extensão .xls.
		if _, errX := excelize.OpenReader(bytes.NewReader(data)); errX == nil {
			svc.logger.Warn("arquivo .xls é na verdade um xlsx")
			return svc.openXLSX(bytes.NewReader(data))
		}
		return nil, fmt.Errorf("%w: erro ao abrir o xls: %w", ErrInvalidFile, err)
	}

	wb := &workbook{grids: make(map[string][][]string)}
	for _, sheet := range book.GetSheets() {
		var grid [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			grid = append(grid, cells)
		}
		name := sheet.GetName()
		wb.names = append(wb.names, name)
		wb.grids[name] = grid
	}
	return wb, nil
}

// openCSV trata o arquivo como uma aba única com o nome do próprio arquivo.
// Conteúdo que não é UTF-8 é lido como Windows-1252.
func (svc *service) openCSV(file io.Reader, filename string) (*workbook, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.Comma = detectDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: erro ao ler o csv: %w", ErrInvalidFile, err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &workbook{
		names:  []string{name},
		grids:  map[string][][]string{name: records},
		single: true,
	}, nil
}

// detectDelimiter escolhe entre ';' e ',' olhando a primeira linha.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// resolveSheet procura a aba pelo nome exato, depois sem diferenciar caixa,
// depois pelo texto normalizado e, por último, pela mais parecida. Planilha de
// aba única atende a qualquer nome.
func (svc *service) resolveSheet(wb *workbook, want string) (string, error) {
	names := wb.names
	if len(names) == 0 {
		return "", fmt.Errorf("%w: planilha sem abas", ErrSheetNotFound)
	}
	if want == "" || wb.single || len(names) == 1 {
		return names[0], nil
	}
	for _, n := range names {
		if n == want {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return n, nil
		}
	}

	key := normalizeText(want)
	byKey := make(map[string]string, len(names))
	keys := make([]string, 0, len(names))
	for _, n := range names {
		k := normalizeText(n)
		if k == key {
			return n, nil
		}
		if _, dup := byKey[k]; !dup && k != "" {
			byKey[k] = n
			keys = append(keys, k)
		}
	}

	if len(keys) > 0 && key != "" {
		cm := closestmatch.New(keys, []int{2, 3})
		if match := cm.Closest(key); match != "" {
			svc.logger.Warn("aba não encontrada pelo nome, usando a mais parecida",
				zap.String("wanted", want), zap.String("using", byKey[match]))
			return byKey[match], nil
		}
	}
	return "", fmt.Errorf("%w: %q (abas: %s)", ErrSheetNotFound, want, strings.Join(names, ", "))
}

// rowsFromGrid usa a primeira linha não vazia como cabeçalho e descarta linhas
// totalmente vazias.
func rowsFromGrid(grid [][]string) []domain.RawRow {
	start := -1
	for i, row := range grid {
		if !emptyRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	header := make([]string, len(grid[start]))
	for i, h := range grid[start] {
		header[i] = strings.TrimSpace(h)
	}

	var out []domain.RawRow
	for _, row := range grid[start+1:] {
		if emptyRow(row) {
			continue
		}
		r := make(domain.RawRow, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if _, dup := r[h]; dup {
				continue
			}
			if i < len(row) {
				r[h] = row[i]
			} else {
				r[h] = ""
			}
		}
		out = append(out, r)
	}
	return out
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var nonAlphanumericRegex = regexp.MustCompile(`[^A-Z0-9 ]+`)
var whitespaceRegex = regexp.MustCompile(`\s+`)

// normalizeText remove acentos, passa para caixa alta e troca pontuação por espaço.
func normalizeText(str string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}))
	result, _, _ := transform.String(t, str)
	result = strings.ToUpper(result)
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = whitespaceRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
