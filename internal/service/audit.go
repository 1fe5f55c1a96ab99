package service

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldDelta 单字段变更（展示用）
type FieldDelta struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// DiffSnapshots 计算两个扁平 key→value 快照的字段级差异（只用于展示）
// 规则：from != to 且二者至少一个非空才算变更，双空视为无变化，
// 抑制可选字段缺席带来的噪音。
// 存储的 old/new 永远是完整对象，diff 算法可以随时改而无需迁移数据
func DiffSnapshots(oldValues, newValues json.RawMessage) []FieldDelta {
	oldMap := flattenSnapshot(oldValues)
	newMap := flattenSnapshot(newValues)

	keys := make(map[string]bool, len(oldMap)+len(newMap))
	for k := range oldMap {
		keys[k] = true
	}
	for k := range newMap {
		keys[k] = true
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	deltas := make([]FieldDelta, 0)
	for _, k := range sorted {
		from := oldMap[k]
		to := newMap[k]
		if from == to {
			continue
		}
		if from == "" && to == "" {
			continue
		}
		deltas = append(deltas, FieldDelta{Field: k, From: from, To: to})
	}
	return deltas
}

// flattenSnapshot JSONB 快照转 key→string（非字符串值按 JSON 字面量呈现）
func flattenSnapshot(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprintf("%v", val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
