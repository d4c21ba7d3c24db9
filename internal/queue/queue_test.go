package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	if dropped := q.Push(testItem{ID: 1, Name: "first"}); dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()

	if _, ok := q.Pop(); ok {
		t.Error("expected empty pop to report !ok")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[int](3)

	q.Push(1, 2, 3)
	if dropped := q.Push(4, 5); dropped != 2 {
		t.Errorf("expected 2 drops, got %d", dropped)
	}

	got := q.GetAndEmpty()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped total, got %d", q.Dropped())
	}
}

func TestQueue_NonPositiveLimitIsUnbounded(t *testing.T) {
	q := NewBounded[int](0)
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	items := q.GetAndEmpty()
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if q.Len() != 0 {
		t.Error("expected queue to be empty")
	}

	// Queue remains usable after draining
	q.Push(testItem{ID: 3})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
	// The drained slice is not affected by later pushes
	if items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("drained items changed: %+v", items)
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := NewBounded[int](50)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Pop()
			}
		}()
	}
	wg.Wait()

	if q.Len() > 50 {
		t.Errorf("bounded queue exceeded limit: %d", q.Len())
	}
}
