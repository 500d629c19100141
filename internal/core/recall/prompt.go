package recall

import (
	"fmt"
	"strings"
)

// BuildContextPrompt は集約済みコンテキストをプロンプト文字列へ整形する。
// 実際の LLM 呼び出しとプロンプト設計は外部コラボレータの責務であり、
// これは CLI 表示・デバッグ用の既定フォーマットにすぎない。
func BuildContextPrompt(query string, result *ContextResult) string {
	var sb strings.Builder

	sb.WriteString("## コンテキスト: 直近の会話\n")
	writeSection(&sb, result.Fragments, ProvenanceFlash, "(直近の会話はありません)")

	sb.WriteString("## コンテキスト: 関連する過去の会話\n")
	if result.Degraded {
		sb.WriteString("(意味検索は利用できませんでした。直近の会話のみでコンテキストを構成しています)\n\n")
	} else {
		writeSection(&sb, result.Fragments, ProvenanceChatSemantic, "(関連する過去の会話はありません)")
	}

	sb.WriteString("## コンテキスト: 関連ドキュメント\n")
	if result.Degraded {
		sb.WriteString("(意味検索は利用できませんでした)\n\n")
	} else {
		writeSection(&sb, result.Fragments, ProvenanceDocumentSemantic, "(関連するドキュメントはありません)")
	}

	sb.WriteString("## ユーザーの発言\n")
	sb.WriteString(query)
	sb.WriteString("\n")

	return sb.String()
}

// writeSection は指定した出自の断片だけを書き出す
func writeSection(sb *strings.Builder, fragments []*ContextFragment, provenance Provenance, emptyNote string) {
	count := 0
	for _, f := range fragments {
		if f.Provenance != provenance {
			continue
		}
		count++
		if score, ok := f.Score.Get(); ok {
			sb.WriteString(fmt.Sprintf("### [%d] (スコア: %.3f)\n", count, score))
		} else {
			sb.WriteString(fmt.Sprintf("### [%d]\n", count))
		}
		sb.WriteString(f.Text)
		sb.WriteString("\n\n")
	}
	if count == 0 {
		sb.WriteString(emptyNote)
		sb.WriteString("\n\n")
	}
}
