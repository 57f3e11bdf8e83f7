package core

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultNoticeCapacity is how many undrained notices a session keeps.
const DefaultNoticeCapacity = 50

// NoticeLog is a Notifier that buffers notices until a client drains them.
// When full, the oldest notice is dropped.
type NoticeLog struct {
	mu       sync.Mutex
	notices  []Notice
	capacity int
	logger   *slog.Logger
	now      func() time.Time
}

// NewNoticeLog creates a NoticeLog holding at most capacity notices.
func NewNoticeLog(capacity int, logger *slog.Logger) *NoticeLog {
	if capacity <= 0 {
		capacity = DefaultNoticeCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeLog{capacity: capacity, logger: logger, now: time.Now}
}

// Notify appends a notice.
func (n *NoticeLog) Notify(kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.notices) == n.capacity {
		n.logger.Debug("notice log full, dropping oldest", "dropped", n.notices[0].Message)
		n.notices = n.notices[1:]
	}
	n.notices = append(n.notices, Notice{Kind: kind, Message: message, At: n.now()})
}

// Drain returns and removes all buffered notices, oldest first.
func (n *NoticeLog) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := n.notices
	n.notices = nil
	if out == nil {
		out = []Notice{}
	}
	return out
}

// Len returns the number of buffered notices.
func (n *NoticeLog) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}
