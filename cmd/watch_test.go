package cmd

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	wqcommon "github.com/warpdl/warpq/common"
	"github.com/warpdl/warpq/pkg/warpcli"
)

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	tests := []struct {
		ev   wqcommon.EventNotification
		want []string
	}{
		{wqcommon.EventNotification{Type: "added", Key: "k", Level: 2, At: at}, []string{"12:30:00", "added", "k", "level=2"}},
		{wqcommon.EventNotification{Type: "success", Key: "k", Bytes: 1000, ElapsedMs: 250, At: at}, []string{"success", "size=1.0 kB", "time=250ms"}},
		{wqcommon.EventNotification{Type: "failed", Key: "k", Error: "boom", At: at}, []string{"failed", "error=boom"}},
		{wqcommon.EventNotification{Type: "reseted", At: at}, []string{"reseted"}},
	}
	for _, tt := range tests {
		got := formatEvent(&tt.ev)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("formatEvent(%s) = %q, missing %q", tt.ev.Type, got, w)
			}
		}
	}
}

func TestStreamEvents_Limit(t *testing.T) {
	d := newTestDaemon(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := warpcli.Dial(ctx, &warpcli.Options{URI: d.uri(), Token: testToken})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	// keep producing events until the stream has printed enough
	stop := make(chan struct{})
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				d.sched.Add(fmt.Sprintf("key-%d", i), 1, 0)
			}
		}
	}()
	out, _ := captureOutput(func() {
		streamEvents(ctx, client, 3)
	})
	close(stop)

	if ctx.Err() != nil {
		t.Fatal("stream did not stop after 3 events")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("printed %d lines, want 3:\n%s", len(lines), out)
	}
	assertContains(t, out, "added")
}

func TestStreamEvents_ConnectionClosed(t *testing.T) {
	d := newTestDaemon(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := warpcli.Dial(ctx, &warpcli.Options{URI: d.uri(), Token: testToken})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		client.Close()
	}()
	out, _ := captureOutput(func() {
		streamEvents(ctx, client, 0)
	})
	assertContains(t, out, "daemon connection closed")
}
