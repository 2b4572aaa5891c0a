package influx

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseFloat 将 _value 转为数值
// 接受 string（两端空白会被去除）与 JSON 数值类型；nil、空串、NaN、Inf 视为无效
func ParseFloat(raw any) (float64, bool) {
	var (
		v   float64
		err error
	)
	switch x := raw.(type) {
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		v, err = strconv.ParseFloat(s, 64)
	case json.Number:
		v, err = x.Float64()
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Value 行的 _value 数值
func (r Row) Value() (float64, bool) {
	return ParseFloat(r["_value"])
}
