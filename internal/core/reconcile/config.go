package reconcile

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTolerance é a tolerância padrão, em rúpias.
const DefaultTolerance = 10.0

// Columns guarda os nomes das colunas lidas de cada linha bruta.
type Columns struct {
	GSTIN         string `yaml:"gstin" json:"gstin"`
	TradeName     string `yaml:"trade_name" json:"trade_name"`
	Email         string `yaml:"email" json:"email"`
	InvoiceNumber string `yaml:"invoice_number" json:"invoice_number"`
	InvoiceDate   string `yaml:"invoice_date" json:"invoice_date"`
	InvoiceValue  string `yaml:"invoice_value" json:"invoice_value"`
	IGST          string `yaml:"igst" json:"igst"`
	CGST          string `yaml:"cgst" json:"cgst"`
	SGST          string `yaml:"sgst" json:"sgst"`
	Taxable       string `yaml:"taxable" json:"taxable"`
}

// DefaultColumns devolve os cabeçalhos usados pelo livro de compras e pelo GSTR-2B.
func DefaultColumns() Columns {
	return Columns{
		GSTIN:         "GSTIN of Supplier",
		TradeName:     "Trade Name",
		Email:         "Email",
		InvoiceNumber: "Invoice Number",
		InvoiceDate:   "Invoice Date",
		InvoiceValue:  "Invoice Value",
		IGST:          "Integrated Tax (IGST)",
		CGST:          "Central Tax (CGST)",
		SGST:          "State Tax (SGST)",
		Taxable:       "Taxable Value",
	}
}

func (c Columns) all() []string {
	return []string{c.GSTIN, c.TradeName, c.Email, c.InvoiceNumber, c.InvoiceDate,
		c.InvoiceValue, c.IGST, c.CGST, c.SGST, c.Taxable}
}

// Config é passada a cada execução; o motor não lê variáveis de ambiente.
type Config struct {
	Tolerance float64
	Columns   Columns
}

// DefaultConfig devolve tolerância de ₹10 e as colunas padrão.
func DefaultConfig() Config {
	return Config{Tolerance: DefaultTolerance, Columns: DefaultColumns()}
}

// WithTolerance devolve uma cópia com outra tolerância.
func (c Config) WithTolerance(eps float64) Config {
	c.Tolerance = eps
	return c
}

// ValidTolerance informa se eps é um número finito e não negativo.
func ValidTolerance(eps float64) bool {
	return !math.IsNaN(eps) && !math.IsInf(eps, 0) && eps >= 0
}

// Validate rejeita tolerância negativa ou não finita e colunas sem nome.
func (c Config) Validate() error {
	if !ValidTolerance(c.Tolerance) {
		return fmt.Errorf("tolerância precisa ser um número finito e não negativo: %v", c.Tolerance)
	}
	for _, name := range c.Columns.all() {
		if name == "" {
			return errors.New("todas as colunas precisam de nome")
		}
	}
	return nil
}
