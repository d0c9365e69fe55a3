package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"camdetect/internal/config"
	"camdetect/internal/logger"
	"camdetect/internal/model"
	"camdetect/internal/service/detection"
	"camdetect/internal/service/overlay"
	"camdetect/internal/service/websocket"
)

type fakeCamera struct {
	mu    sync.Mutex
	frame model.Frame
}

func (c *fakeCamera) Frame() (model.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame, c.frame.Valid()
}

type fakeDetector struct{}

func (fakeDetector) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	return []model.Detection{{Label: "cup", Confidence: 0.75, Box: model.Box{X: 1, Y: 1, Width: 5, Height: 5}}}, nil
}

type fakeConn struct {
	mu       sync.Mutex
	messages []websocket.Message
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	var msg websocket.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *fakeConn) Close() error                       { return nil }

func (c *fakeConn) has(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.Type == kind {
			return true
		}
	}
	return false
}

func TestManager_ForwardsFramesAndResults(t *testing.T) {
	cfg := &config.Config{LogDirectory: t.TempDir(), LogLevel: "info", StreamFPS: 50}
	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer l.Close()

	camera := &fakeCamera{frame: model.Frame{Seq: 1, Width: 8, Height: 8, Data: []byte{0xff, 0xd8}}}
	loop := detection.NewLoop(camera, fakeDetector{}, overlay.NewCanvas(), l, detection.Options{})
	hub := websocket.NewHubService(l)
	manager := NewManager(camera, loop, hub, nil, nil, nil, cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); hub.Run(ctx) }()
	go func() { defer wg.Done(); manager.Run(ctx) }()
	defer func() {
		cancel()
		wg.Wait()
	}()

	conn := &fakeConn{}
	hub.Register(ctx, conn)

	deadline := time.Now().Add(3 * time.Second)
	for !conn.has(websocket.MessageFrame) || !conn.has(websocket.MessageDetections) {
		if time.Now().After(deadline) {
			t.Fatal("viewer did not receive both a frame and detections")
		}
		if hub.GetClientCount() > 0 {
			loop.Tick(ctx)
			loop.Wait()
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (c *fakeConn) frames() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seqs []uint64
	for _, m := range c.messages {
		if m.Type == websocket.MessageFrame {
			seqs = append(seqs, m.Seq)
		}
	}
	return seqs
}

func TestManager_StreamsEachFrameOnce(t *testing.T) {
	cfg := &config.Config{LogDirectory: t.TempDir(), LogLevel: "info", StreamFPS: 100}
	l, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer l.Close()

	camera := &fakeCamera{frame: model.Frame{Seq: 1, Width: 8, Height: 8, Data: []byte{0xff, 0xd8}}}
	loop := detection.NewLoop(camera, fakeDetector{}, overlay.NewCanvas(), l, detection.Options{})
	hub := websocket.NewHubService(l)
	manager := NewManager(camera, loop, hub, nil, nil, nil, cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); hub.Run(ctx) }()
	go func() { defer wg.Done(); manager.Run(ctx) }()
	defer func() {
		cancel()
		wg.Wait()
	}()

	conn := &fakeConn{}
	if !hub.Register(ctx, conn) {
		t.Fatal("Register() returned false")
	}

	waitFrames := func(n int) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for len(conn.frames()) < n {
			if time.Now().After(deadline) {
				t.Fatalf("received frames %v, expected %d", conn.frames(), n)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	waitFrames(1)
	// several limiter periods pass with no new frame
	time.Sleep(100 * time.Millisecond)
	if got := conn.frames(); len(got) != 1 {
		t.Fatalf("frames = %v, expected the unchanged frame once", got)
	}

	camera.mu.Lock()
	camera.frame.Seq = 2
	camera.mu.Unlock()

	waitFrames(2)
	if got := conn.frames(); got[1] != 2 {
		t.Errorf("frames = %v", got)
	}
}
