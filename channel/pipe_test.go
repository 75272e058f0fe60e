package channel

import (
	"context"
	"testing"
	"time"

	"github.com/pamgate/pamgate/errors"
)

func TestPipe_Order(t *testing.T) {
	p := NewPipe[int](8)

	for i := 0; i < 5; i++ {
		if err := p.Send(i, time.Second); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		v, err := p.Recv(time.Second)
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
}

func TestPipe_SendTimeout(t *testing.T) {
	p := NewPipe[string](1)

	if err := p.Send("first", time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	err := p.Send("second", 20*time.Millisecond)
	if !errors.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestPipe_RecvTimeout(t *testing.T) {
	p := NewPipe[string](1)

	_, err := p.Recv(20 * time.Millisecond)
	if !errors.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestPipe_CloseDrainsBuffer(t *testing.T) {
	p := NewPipe[string](4)

	if err := p.Send("last words", time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	p.Close()

	// A buffered item sent before Close must still be receivable.
	v, err := p.Recv(time.Second)
	if err != nil {
		t.Fatalf("recv after close: %v", err)
	}
	if v != "last words" {
		t.Fatalf("expected 'last words', got %q", v)
	}

	// Once drained, the pipe reports closed.
	_, err = p.Recv(time.Second)
	if !errors.IsClosed(err) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestPipe_SendAfterClose(t *testing.T) {
	p := NewPipe[int](1)
	p.Close()

	if err := p.Send(1, time.Second); !errors.IsClosed(err) {
		t.Fatalf("expected closed, got %v", err)
	}
	if !p.Closed() {
		t.Fatal("Closed() should report true")
	}
}

func TestPipe_CloseUnblocksRecv(t *testing.T) {
	p := NewPipe[int](1)

	done := make(chan error, 1)
	go func() {
		_, err := p.Recv(5 * time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.IsClosed(err) {
			t.Fatalf("expected closed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock on Close")
	}
}

func TestPipe_CloseUnblocksSend(t *testing.T) {
	p := NewPipe[int](1)
	if err := p.Send(1, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Send(2, 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if !errors.IsClosed(err) {
			t.Fatalf("expected closed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock on Close")
	}
}

func TestPipe_CloseIdempotent(t *testing.T) {
	p := NewPipe[int](1)
	p.Close()
	p.Close() // must not panic
}

func TestPipe_Context(t *testing.T) {
	p := NewPipe[int](1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RecvContext(ctx)
	if !errors.IsTimeout(err) {
		t.Fatalf("expected timeout from cancelled context, got %v", err)
	}

	if err := p.Send(7, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	v, err := p.RecvContext(context.Background())
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}

	// Fill the buffer so the send cannot complete immediately.
	if err := p.Send(8, time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.SendContext(ctx, 9); !errors.IsTimeout(err) {
		t.Fatalf("expected timeout from cancelled context, got %v", err)
	}
}

func TestPipe_ContextDrainsAfterClose(t *testing.T) {
	p := NewPipe[int](2)
	if err := p.SendContext(context.Background(), 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	p.Close()

	v, err := p.RecvContext(context.Background())
	if err != nil {
		t.Fatalf("recv after close: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	if _, err := p.RecvContext(context.Background()); !errors.IsClosed(err) {
		t.Fatalf("expected closed, got %v", err)
	}
}
