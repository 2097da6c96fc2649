package arc

// Logger はログ出力のインターフェース
type Logger interface {
	Printf(format string, a ...any)
}

// NopLogger は何も出力しない Logger です
type NopLogger struct{}

// Printf は何もしません
func (NopLogger) Printf(string, ...any) {}

// OrNop は logger が nil の場合に NopLogger を返します
func OrNop(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}
	return logger
}
