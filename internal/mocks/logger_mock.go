package mocks

import (
	"fmt"
	"strings"
	"sync"
)

// MockLogger は出力を記録するロガー
type MockLogger struct {
	mu       sync.Mutex
	messages []string
}

// Printf はメッセージを記録します
func (l *MockLogger) Printf(format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, a...))
}

// Messages は記録されたメッセージを返します
func (l *MockLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// Contains は substr を含むメッセージがあるかを返します
func (l *MockLogger) Contains(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
