package status

// Line prefixes of the status report. They are shared with the producer
// and must not change without updating it.
const (
	prefixCheckTime = "检查时间:"
	prefixVersion   = "服务器版本:"
	prefixPlayers   = "在线玩家:"
	prefixCount     = "玩家数:"
	prefixState     = "状态:"
	prefixErrorMsg  = "错误信息:"

	headerOpen   = " ("
	headerSuffix = "):"

	listSeparator  = ", "
	countSeparator = "/"
)
