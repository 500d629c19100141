package memory

import (
	"time"

	"github.com/google/uuid"
)

// SourceType はチャンクの由来を表す
type SourceType string

const (
	// SourceTypeChat は会話メッセージ由来のチャンク
	SourceTypeChat SourceType = "chat"
	// SourceTypeDocument はアップロードされたドキュメント由来のチャンク
	SourceTypeDocument SourceType = "document"
)

// IsValid は既知の SourceType かどうかを返す
func (s SourceType) IsValid() bool {
	return s == SourceTypeChat || s == SourceTypeDocument
}

// Chunk は検索可能な最小単位（テキスト断片 + Embeddingベクトル）を表す。
// 一度保存された Chunk は不変であり、Vector の次元数も変化しない。
type Chunk struct {
	ID         uuid.UUID
	SessionID  string     // 所属する会話セッション（document の場合も記録するが隔離には使わない）
	SourceType SourceType
	Text       string
	Vector     []float32
	Model      string     // ベクトルを生成した Embedding モデル識別子
	MessageID  *string    // chat 由来の場合に必須
	DocumentID *uuid.UUID // document 由来の場合に必須
	ChunkIndex *int       // 同一ドキュメント内での順序（chat の場合は nil）
	Metadata   *string    // コア層では解釈しない付帯情報
	CreatedAt  time.Time
}

// DocumentStatus はドキュメントの処理状態を表す
type DocumentStatus string

const (
	// DocumentStatusUploading はアップロード受付直後の状態
	DocumentStatusUploading DocumentStatus = "uploading"
	// DocumentStatusProcessing はチャンク化・Embedding処理中の状態
	DocumentStatusProcessing DocumentStatus = "processing"
	// DocumentStatusReady は処理が完了し検索可能になった状態（終端）
	DocumentStatusReady DocumentStatus = "ready"
	// DocumentStatusError は処理に失敗した状態（終端）
	DocumentStatusError DocumentStatus = "error"
)

// IsValid は既知の DocumentStatus かどうかを返す
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusUploading, DocumentStatusProcessing, DocumentStatusReady, DocumentStatusError:
		return true
	}
	return false
}

// IsTerminal は終端状態（ready / error）かどうかを返す
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusReady || s == DocumentStatusError
}

// CanTransitionTo は next への状態遷移が許可されているかを返す。
// 許可される遷移: uploading → processing → {ready, error}
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case DocumentStatusUploading:
		return next == DocumentStatusProcessing || next == DocumentStatusError
	case DocumentStatusProcessing:
		return next == DocumentStatusReady || next == DocumentStatusError
	default:
		return false
	}
}

// Document は document 由来チャンク群をまとめるアップロード単位を表す。
// Document は自身の DocumentID を持つチャンク集合を排他的に所有し、
// 削除時にはそれらをカスケード削除する。
type Document struct {
	ID           uuid.UUID
	SessionID    string
	Name         string
	FileRef      *string // 外部ファイルストレージへの参照（コア層では解釈しない）
	FileType     *string
	FileSize     int64
	Status       DocumentStatus
	ChunkCount   int
	ErrorMessage *string
	UploadedAt   time.Time
	ProcessedAt  *time.Time
}
