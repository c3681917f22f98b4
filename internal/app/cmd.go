package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandRun は全論壇を1回監視して終了することを示す。
	CommandRun Command = "run"
	// CommandWorker はcron式に従って監視を繰り返すワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate は処理済み台帳のマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はワーカーのヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandRunを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandRun
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "run":
		return CommandRun
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandRun
	}
}
