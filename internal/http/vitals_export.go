package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"wisefido-vital-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

// VitalsExportHeader 导出表头
var VitalsExportHeader = []string{
	"Room",
	"Device ID",
	"Label",
	"Heart Rate",
	"HR Trend",
	"Respiration",
	"RR Trend",
	"Distance Min",
	"Movement Amplitude",
	"Occupied",
	"Fall Risk",
	"Link",
}

// GenerateVitalsExport 按展示顺序（跌倒风险优先）导出当前记录
func GenerateVitalsExport(view models.VitalsView) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Vitals"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	riskStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create risk style: %w", err)
	}

	for col, header := range VitalsExportHeader {
		if err := setCellValue(f, sheetName, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header %s: %w", header, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(VitalsExportHeader))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 16); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, rec := range view.Records {
		row := i + 2
		values := []any{
			rec.Room,
			rec.DeviceID,
			rec.Label,
			floatOrEmpty(rec.HeartRate),
			string(rec.Trends.HeartRate),
			floatOrEmpty(rec.RespirationRate),
			string(rec.Trends.RespirationRate),
			floatOrEmpty(rec.DistanceMin),
			floatOrEmpty(rec.MovementAmplitude),
			yesNo(rec.Occupied),
			yesNo(rec.FallRisk),
			rec.Link,
		}
		for col, v := range values {
			if v == "" {
				continue
			}
			if err := setCellValue(f, sheetName, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
		if rec.FallRisk {
			start, _ := excelize.CoordinatesToCellName(1, row)
			end, _ := excelize.CoordinatesToCellName(len(VitalsExportHeader), row)
			if err := f.SetCellStyle(sheetName, start, end, riskStyle); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set risk style: %w", err)
			}
		}
	}

	// 末尾写入更新时间与错误信息
	footer := len(view.Records) + 3
	updated := ""
	if view.LastUpdated != nil {
		updated = view.LastUpdated.Format(time.RFC3339)
	}
	if err := setCellValue(f, sheetName, 1, footer, "Last Updated"); err != nil {
		f.Close()
		return nil, err
	}
	if err := setCellValue(f, sheetName, 2, footer, updated); err != nil {
		f.Close()
		return nil, err
	}
	if view.LastError != "" {
		if err := setCellValue(f, sheetName, 1, footer+1, "Last Error"); err != nil {
			f.Close()
			return nil, err
		}
		if err := setCellValue(f, sheetName, 2, footer+1, view.LastError); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// setCellValue 设置单元格值
func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func floatOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
