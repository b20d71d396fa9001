package canary

import (
	"context"
	"sync"
	"time"
)

// sessionRenewInterval은 벤더 세션 keep-alive 주기
const sessionRenewInterval = 30 * time.Second

// LiveStreamSession is a short-lived streaming credential issued by the
// vendor. The stream URL stays valid only while the session is renewed.
type LiveStreamSession struct {
	SessionID     string `json:"session_id"`
	LiveStreamURL string `json:"live_stream_url"`

	client     *Client
	deviceUUID string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// StartRenewSession launches the keep-alive loop for this session.
// Calling it again restarts the loop; calling it on a session without a
// client (e.g. hand-built in tests) is a no-op.
func (s *LiveStreamSession) StartRenewSession() {
	if s.client == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.renewLoop(ctx)
}

// Stop terminates the keep-alive loop.
func (s *LiveStreamSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *LiveStreamSession) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(sessionRenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			// 갱신 실패는 다음 틱에서 다시 시도됩니다
			_ = s.client.renewSession(renewCtx, s.deviceUUID, s.SessionID)
			cancel()
		}
	}
}
