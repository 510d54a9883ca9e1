package respond

import (
	"regexp"
)

var (
	// API キーパターン
	// 注意: anthropicKeyPatternを先に適用する（より具体的なパターンから）
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	// OpenAIのパターンは、既にマスクされた文字列（*を含む）にマッチしないようにする
	openaiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)

	// 接続文字列内のパスワードパターン（postgres:// や redis:// のDSN）
	dsnPasswordPattern = regexp.MustCompile(`://([^:/]+):([^@]+)@`)

	// Bearerトークンパターン（認可ヘッダーがエラーに混入した場合）
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]+`)
)

// SanitizeError は機密情報をマスクしたエラーメッセージを返す
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	// APIキーのマスク（順序重要: より具体的なパターンから適用）
	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")

	// 接続文字列パスワードのマスク
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	// Bearerトークンのマスク
	msg = bearerTokenPattern.ReplaceAllString(msg, "Bearer ****")

	return msg
}
