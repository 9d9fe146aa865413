package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestRateLimitedReader_Unlimited(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 1<<16)
	got, err := readAll(context.Background(), bytes.NewReader(data), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("payload mismatch")
	}
}

func TestRateLimitedReader_Throttles(t *testing.T) {
	// 2 KiB at 4 KiB/s with an empty bucket takes about half a second
	data := bytes.Repeat([]byte{2}, 2048)
	start := time.Now()
	got, err := readAll(context.Background(), bytes.NewReader(data), 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("payload mismatch")
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("read finished too fast: %v", elapsed)
	}
}

func TestRateLimitedReader_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRateLimitedReader(ctx, bytes.NewReader(bytes.Repeat([]byte{3}, 1<<20)), 1024)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := io.Copy(io.Discard, r)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimitedReader_SetLimit(t *testing.T) {
	r := NewRateLimitedReader(context.Background(), bytes.NewReader([]byte("abc")), 1)
	r.SetLimit(0)
	got, err := io.ReadAll(r)
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
}
