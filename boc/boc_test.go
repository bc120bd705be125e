package boc

import (
	"sync"
	"testing"
	"time"
)

func TestWaitForExtendWakesOnExtend(t *testing.T) {
	b := New()
	b.SetState(Stream)

	done := make(chan int64, 1)
	go func() {
		n, _ := b.WaitForExtend(0)
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	b.ExtendNotify(5)

	select {
	case n := <-done:
		if n != 5 {
			t.Fatalf("expected 5, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForExtend did not wake up")
	}
}

func TestWaitForExtendWakesOnFail(t *testing.T) {
	b := New()
	b.SetState(Stream)

	done := make(chan State, 1)
	go func() {
		_, s := b.WaitForExtend(0)
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	b.Fail()

	select {
	case s := <-done:
		if s != Failed {
			t.Fatalf("expected FAILED, got %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForExtend did not wake up on failure")
	}
}

func TestWaitForExtendWakesOnFinished(t *testing.T) {
	b := New()
	b.SetState(Stream)
	b.ExtendNotify(3)

	done := make(chan struct{})
	go func() {
		b.WaitForExtend(3) // already at 3, must wait for FINISHED
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("should still be waiting")
	default:
	}

	b.SetState(Finished)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForExtend did not wake up on FINISHED")
	}
}

func TestLenSoFarMonotone(t *testing.T) {
	b := New()
	b.SetState(Stream)
	var wg sync.WaitGroup
	for i := int64(1); i <= 100; i++ {
		wg.Add(1)
		n := i
		go func() {
			defer wg.Done()
			b.ExtendNotify(n)
		}()
	}
	wg.Wait()
	if got := b.LenSoFar(); got != 100 {
		t.Fatalf("expected monotone max 100, got %d", got)
	}
}

func TestSetStateBackwardsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic moving state backwards")
		}
	}()
	b := New()
	b.SetState(Finished)
	b.SetState(Stream)
}
