package converter

import (
	"fmt"

	"github.com/LuisEduardoPedra/gstrecon/internal/domain"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

func (svc *service) WriteWorkbook(sheets []domain.Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("nenhuma aba para gravar")
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, s := range sheets {
		name := s.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("erro ao nomear a aba %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("erro ao criar a aba %q: %w", name, err)
		}

		for r, row := range s.Rows {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return nil, err
			}
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return nil, fmt.Errorf("erro ao gravar a linha %d da aba %q: %w", r+1, name, err)
			}
		}

		if len(s.Rows) > 0 && len(s.Rows[0]) > 0 {
			if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
				return nil, err
			}
			last, err := excelize.ColumnNumberToName(len(s.Rows[0]))
			if err != nil {
				return nil, err
			}
			if err := f.SetColWidth(name, "A", last, 20); err != nil {
				return nil, err
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar o xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
