package memory

import "errors"

// ErrInvalidChunk はチャンクの検証エラー（空ベクトル、非有限値、必須フィールド欠落）
var ErrInvalidChunk = errors.New("invalid chunk")

// ErrDimensionMismatch はクエリベクトルと候補ベクトルの次元数不一致エラー。
// 不一致の候補を黙ってスキップすると検索結果の正しさが損なわれるため、
// ランキング呼び出し全体を失敗させる。
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrDocumentNotFound は ID 指定操作で対象ドキュメントが存在しないエラー。
// 削除操作は冪等な no-op とし、このエラーを返さない。
var ErrDocumentNotFound = errors.New("document not found")

// ErrEmbeddingUnavailable は Embedding プロバイダ由来の失敗。
// コンテキスト集約では Stage 1 のみへの縮退で回復する。
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// ErrStoreUnavailable はチャンクストアに到達できない致命的エラー。
// 不完全な記憶を完全なものとして返すより、呼び出し元へ伝播させる。
var ErrStoreUnavailable = errors.New("chunk store unavailable")

// ErrInvalidStatusTransition は許可されていないドキュメント状態遷移エラー
var ErrInvalidStatusTransition = errors.New("invalid document status transition")
