package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Row is one result record keyed by field name. Values are already
// normalized by the store adapters (no driver-private types).
type Row map[string]any

// KeyString renders a row value as a join key string. Integral numbers
// render without a decimal point so the same key matches across stores
// regardless of driver type (MySQL int64 vs Influx tag string vs JSON
// float64). The second return is false for values unusable as keys.
func KeyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case []byte:
		return string(x), len(x) > 0
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339), true
	default:
		return fmt.Sprintf("%v", x), true
	}
}

// StepResult holds the rows one plan step produced.
type StepResult struct {
	StepIndex int
	Store     StoreID
	Rows      []Row
	Elapsed   time.Duration
	Attempts  int
}

// ExecutedQuery describes one store query as actually run, for answer
// transparency. Query text has join placeholders already substituted.
type ExecutedQuery struct {
	Store    StoreID       `json:"store"`
	Query    string        `json:"query"`
	RowCount int           `json:"row_count"`
	Elapsed  time.Duration `json:"-"`
	Attempts int           `json:"attempts"`
}

// AnswerPayload is the final answer for one question: fused rows, the
// warnings accumulated along the way, and the strategy that produced them.
type AnswerPayload struct {
	Rows         []Row
	Warnings     []string
	StrategyUsed Strategy
	Queries      []ExecutedQuery
	Elapsed      time.Duration
}
