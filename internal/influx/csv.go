package influx

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSV 解析 InfluxDB annotated CSV
//
// 规则：
//   - 以 '#' 开头的注解行会重置表头
//   - 空行分隔不同的表，每个表的第一行是表头
//   - 表头包含 error 列时视为查询错误
func ParseCSV(body []byte) ([]Row, error) {
	normalized := bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n"))

	var rows []Row
	for _, block := range bytes.Split(normalized, []byte("\n\n")) {
		if len(bytes.TrimSpace(block)) == 0 {
			continue
		}
		blockRows, err := parseTable(block)
		if err != nil {
			return nil, err
		}
		rows = append(rows, blockRows...)
	}
	return rows, nil
}

func parseTable(block []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(block))
	reader.FieldsPerRecord = -1

	var (
		headers []string
		rows    []Row
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		if strings.HasPrefix(record[0], "#") {
			headers = nil
			continue
		}
		if headers == nil {
			headers = record
			continue
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = record[i]
		}

		if msg, ok := row["error"].(string); ok && msg != "" {
			return nil, fmt.Errorf("query error: %s", msg)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
