package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shouni/go-book-spider/pkg/types"
)

// Format はレコードの出力形式です。
type Format string

const (
	FormatJSONLines Format = "jsonl" // 1行1レコード、出力ごとに即時書き込み
	FormatJSON      Format = "json"  // 配列として Close 時に書き込み
	FormatYAML      Format = "yaml"  // シーケンスとして Close 時に書き込み

	DefaultFormat = FormatJSONLines
)

// Formats は利用可能な出力形式の一覧です。
func Formats() []Format {
	return []Format{FormatJSONLines, FormatJSON, FormatYAML}
}

// ParseFormat は文字列を Format に変換します。空文字列は DefaultFormat です。
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return DefaultFormat, nil
	}
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("未対応の出力形式です: %s (jsonl, json, yaml のいずれかを指定してください)", s)
}

// Writer は、スパイダーが出力したレコードを io.Writer に書き出します。
type Writer struct {
	w       io.Writer
	format  Format
	pending []types.Record
	count   int
	closed  bool
}

// NewWriter は新しい Writer を生成します。
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	if w == nil {
		return nil, fmt.Errorf("emit.NewWriter: writer cannot be nil")
	}
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	return &Writer{w: w, format: f}, nil
}

// Emit はレコードを1件出力します。
func (w *Writer) Emit(record types.Record) error {
	if w.closed {
		return fmt.Errorf("クローズ済みのWriterには出力できません")
	}
	if record == nil {
		return fmt.Errorf("nilのレコードは出力できません")
	}
	w.count++

	if w.format != FormatJSONLines {
		w.pending = append(w.pending, record)
		return nil
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("レコードのJSONエンコードに失敗しました: %w", err)
	}
	if _, err := w.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("レコードの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Count はこれまでに出力したレコード数を返します。
func (w *Writer) Count() int {
	return w.count
}

// Close はバッファされたレコードを書き出します。jsonl では何もしません。
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	records := w.pending
	if records == nil {
		records = []types.Record{}
	}

	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("レコードのJSONエンコードに失敗しました: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("レコードのYAMLエンコードに失敗しました: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("YAMLエンコーダーのクローズに失敗しました: %w", err)
		}
	}
	return nil
}
