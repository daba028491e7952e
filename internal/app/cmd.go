package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はPostgreSQLのマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed は管理者ユーザーとサンプルデータを投入することを示す。
	CommandSeed Command = "seed"
	// CommandCleanup は期限切れセッションとリフレッシュトークンを定期削除することを示す。
	CommandCleanup Command = "cleanup"
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

	switch Command(args[0]) {
	case CommandServe, CommandMigrate, CommandSeed, CommandCleanup, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
