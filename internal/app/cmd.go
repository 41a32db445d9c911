package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は管理APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は在庫監視ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空の場合、または先頭がフラグの場合はCommandServeを返し、引数をそのまま残す。
// サポート外のコマンドもCommandServeとして扱う。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "worker":
		return CommandWorker, args[1:]
	case "serve":
		return CommandServe, args[1:]
	case "migrate":
		return CommandMigrate, args[1:]
	case "healthcheck":
		return CommandHealthcheck, args[1:]
	default:
		if len(args[0]) > 0 && args[0][0] == '-' {
			return CommandServe, args
		}
		return CommandServe, args[1:]
	}
}
