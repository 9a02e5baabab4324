package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はローカルビューサーバーを起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はトークン保存用テーブルのマイグレーションを適用することを示す。
	CommandMigrate Command = "migrate"
	// CommandMigrateDown はマイグレーションを1段階ロールバックすることを示す。
	CommandMigrateDown Command = "migrate-down"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		if len(args) > 1 && args[1] == "down" {
			return CommandMigrateDown
		}
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
