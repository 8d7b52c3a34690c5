package simulator

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/belfioreasia/swemls-aki-prediction/internal/hl7"
	"github.com/belfioreasia/swemls-aki-prediction/internal/mllp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleMsg = "MSH|^~\\&|SIM|HOSP|||20240615103000||ADT^A01|1|T|2.5\rPID|1||100||DOE^JOHN||19840203|M\r"

func writeReplayFile(t *testing.T, messages ...string) string {
	t.Helper()
	var data []byte
	for _, m := range messages {
		data = append(data, mllp.Frame([]byte(m))...)
	}
	path := filepath.Join(t.TempDir(), "messages.mllp")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadMessages(t *testing.T) {
	path := writeReplayFile(t, sampleMsg, sampleMsg)

	messages, err := LoadMessages(path)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, sampleMsg, string(messages[0]))
}

func TestLoadMessages_TrailingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.mllp")
	data := append(mllp.Frame([]byte(sampleMsg)), mllp.StartOfBlock, 'x')
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := LoadMessages(path)
	assert.ErrorContains(t, err, "trailing bytes")
}

func TestLoadMessages_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.mllp")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := LoadMessages(path)
	assert.ErrorContains(t, err, "no messages")
}

// 连接回放服务并确认全部消息，返回收到的消息
func drainReplay(t *testing.T, address string, count int) []string {
	t.Helper()
	conn, err := net.Dial("tcp", address)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var received []string
	var pending []byte
	buf := make([]byte, 1024)
	for len(received) < count {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		pending = append(pending, buf[:n]...)

		messages, remainder, err := mllp.Split(pending)
		require.NoError(t, err)
		pending = remainder

		for _, m := range messages {
			received = append(received, string(m))
			_, err = conn.Write(mllp.Frame(hl7.BuildAck(true, time.Now())))
			require.NoError(t, err)
		}
	}
	return received
}

func startReplay(t *testing.T, messages [][]byte, short bool) (string, context.CancelFunc, chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := ln.Addr().String()
	ln.Close()

	server := NewMLLPServer(address, messages, short, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Start(ctx)
	}()
	// 等待端口可用
	waitListening(t, address)
	return address, cancel, done
}

func waitListening(t *testing.T, address string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", address)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never listened on %s", address)
}

func TestMLLPServer_ReplaysAllMessages(t *testing.T) {
	messages := [][]byte{[]byte(sampleMsg), []byte(sampleMsg)}
	address, cancel, done := startReplay(t, messages, false)
	defer func() { cancel(); <-done }()

	received := drainReplay(t, address, 2)
	assert.Equal(t, sampleMsg, received[0])
	assert.Equal(t, sampleMsg, received[1])
}

func TestMLLPServer_ShortMessagesStillFrameCorrectly(t *testing.T) {
	messages := [][]byte{[]byte(sampleMsg)}
	address, cancel, done := startReplay(t, messages, true)
	defer func() { cancel(); <-done }()

	received := drainReplay(t, address, 1)
	assert.Equal(t, sampleMsg, received[0])
}

func TestMLLPServer_AdvancesOnReject(t *testing.T) {
	messages := [][]byte{[]byte(sampleMsg), []byte(sampleMsg)}
	address, cancel, done := startReplay(t, messages, false)
	defer func() { cancel(); <-done }()

	conn, err := net.Dial("tcp", address)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var received int
	var pending []byte
	buf := make([]byte, 1024)
	for received < 2 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		pending = append(pending, buf[:n]...)

		messages, remainder, err := mllp.Split(pending)
		require.NoError(t, err)
		pending = remainder

		for range messages {
			received++
			// 拒收不应阻止回放推进
			_, err = conn.Write(mllp.Frame(hl7.BuildAck(false, time.Now())))
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 2, received)
}

func TestPagerReceiver_Endpoints(t *testing.T) {
	p := NewPagerReceiver("127.0.0.1:0", zap.NewNop())
	server := httptest.NewServer(p.server.Handler)
	defer server.Close()

	t.Run("valid page", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/page", "text/plain", strings.NewReader("100,20240615103000"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(1), p.PagesReceived())
	})

	t.Run("mrn only", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/page", "text/plain", strings.NewReader("100"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("non-integer mrn", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/page", "text/plain", strings.NewReader("abc,20240615103000"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/page", "text/plain", strings.NewReader("100,notatime"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too many fields", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/page", "text/plain", strings.NewReader("100,20240615103000,extra"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("healthy", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/healthy", "text/plain", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("page rejects GET", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/page")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestPagerReceiver_ShutdownEndpoint(t *testing.T) {
	p := NewPagerReceiver("127.0.0.1:0", zap.NewNop())
	server := httptest.NewServer(p.server.Handler)
	defer server.Close()

	resp, err := http.Post(server.URL+"/shutdown", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-p.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown signal not raised")
	}
}
