package layout

import (
	"encoding/json"
	"io"
)

// WriteDebugJSON 将编译结果（含完整帧树）以 JSON 写入 w，便于调试或可视化。
func WriteDebugJSON(w io.Writer, doc *Document) error {
	if doc == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
