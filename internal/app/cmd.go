package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebコンソールモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandLogin はログインしてセッションを保存することを示す。
	CommandLogin Command = "login"
	// CommandLogout はセッションを破棄することを示す。
	CommandLogout Command = "logout"
	// CommandSend はパニックアラートを送信することを示す。
	CommandSend Command = "send"
	// CommandHistory はアラート履歴を表示することを示す。
	CommandHistory Command = "history"
	// CommandCancel はアラートをキャンセルすることを示す。
	CommandCancel Command = "cancel"
	// CommandAdvisories は安全注意報を表示することを示す。
	CommandAdvisories Command = "advisories"
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
	case "login":
		return CommandLogin
	case "logout":
		return CommandLogout
	case "send":
		return CommandSend
	case "history":
		return CommandHistory
	case "cancel":
		return CommandCancel
	case "advisories":
		return CommandAdvisories
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
