package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// blocker returns a computation that signals started and holds its worker until release is closed.
func blocker(started chan<- struct{}, release <-chan struct{}) Computation[int] {
	return Func(func(ctx context.Context) (int, error) {
		started <- struct{}{}
		<-release
		return 1, nil
	})
}

func awaitSignals(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-timeout:
			t.Fatalf("received %d of %d signals before timeout", i, n)
		}
	}
}

// TestScheduler_HighTasksCompleteInOrder verifies WaitAll returns values in handle order
// Given: A scheduler with 2 high workers
// When: 20 high tasks returning their index are submitted and awaited
// Then: Every value is returned at its own index
func TestScheduler_HighTasksCompleteInOrder(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 2, 1)
	handles := make([]*TaskHandle[int], 20)

	// Act
	for i := range handles {
		handles[i] = SubmitFunc(s, func(ctx context.Context) (int, error) { return i, nil }, PriorityHigh)
	}
	values, err := WaitAll(waitCtx(t), handles)

	// Assert
	if err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}
	for i, v := range values {
		if v != i {
			t.Errorf("values[%d] = %d, want %d", i, v, i)
		}
	}
	if got := s.Stats().Submitted; got != 20 {
		t.Errorf("Submitted = %d, want 20", got)
	}
}

// TestScheduler_LazyStart verifies each lane starts on its first submission
// Given: A new scheduler
// When: Only a high task is submitted
// Then: The high lane is running with its configured workers and the low lane never started
func TestScheduler_LazyStart(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 3, 1)
	if st := s.Stats(); st.High.Started || st.Low.Started {
		t.Fatal("no lane should start before the first submission")
	}

	// Act
	if _, err := SubmitFunc(s, func(ctx context.Context) (int, error) { return 1, nil }, PriorityHigh).Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Assert
	st := s.Stats()
	if !st.High.Started || st.High.Workers != 3 || st.High.LiveWorkers != 3 {
		t.Errorf("high lane = %+v, want started with 3 live workers", st.High)
	}
	if st.Low.Started || st.Low.LiveWorkers != 0 {
		t.Errorf("low lane = %+v, want not started", st.Low)
	}
	if !s.Pool(PriorityHigh).IsRunning() || s.Pool(PriorityLow).IsRunning() {
		t.Error("only the high pool should be running")
	}
}

// TestScheduler_ConcurrentFirstSubmissionsStartOnce verifies a lane pool starts exactly once
// Given: 64 goroutines released together
// When: Each submits the first high task concurrently
// Then: The high pool was started once with exactly the configured worker count
func TestScheduler_ConcurrentFirstSubmissionsStartOnce(t *testing.T) {
	// Arrange
	const submitters = 64
	s := newTestScheduler(t, 3, 1)
	handles := make([]*TaskHandle[int], submitters)
	gate := make(chan struct{})
	var wg sync.WaitGroup

	// Act
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			handles[i] = SubmitFunc(s, func(ctx context.Context) (int, error) { return i, nil }, PriorityHigh)
		}()
	}
	close(gate)
	wg.Wait()

	if _, err := WaitAll(waitCtx(t), handles); err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}

	// Assert
	st := s.LaneStats(PriorityHigh)
	if st.Starts != 1 {
		t.Errorf("Starts = %d, want 1", st.Starts)
	}
	if st.Workers != 3 || st.LiveWorkers != 3 {
		t.Errorf("workers = %d live = %d, want 3/3", st.Workers, st.LiveWorkers)
	}
	if st.Completed+s.LaneStats(PriorityLow).Completed != submitters {
		t.Errorf("completed = %d, want %d", st.Completed, submitters)
	}
}

// TestScheduler_IdleWorkersRunOtherLane verifies fallback to the other lane
// Given: One high and one low worker, both started
// When: Two blocking low tasks are submitted
// Then: Both run at once, so the high worker took one from the low lane
func TestScheduler_IdleWorkersRunOtherLane(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)
	if err := s.Bootstrap(ctx, 1, 1); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	// Act
	a := SubmitNamed(s, "blocker-a", blocker(started, release), PriorityLow)
	b := SubmitNamed(s, "blocker-b", blocker(started, release), PriorityLow)
	awaitSignals(t, started, 2)
	close(release)

	// Assert
	if _, err := WaitAll(ctx, []*TaskHandle[int]{a, b}); err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}
	if got := s.LaneStats(PriorityHigh).Fallbacks; got < 1 {
		t.Errorf("high lane fallbacks = %d, want >= 1", got)
	}
	ranOnHigh := false
	for _, rec := range s.RecentExecutions(0) {
		if (rec.Name == "blocker-a" || rec.Name == "blocker-b") && rec.WorkerLane == PriorityHigh {
			ranOnHigh = true
			if rec.Lane != PriorityLow {
				t.Errorf("record lane = %s, want low", rec.Lane)
			}
		}
	}
	if !ranOnHigh {
		t.Error("expected one low task to run on the high worker")
	}
}

// TestScheduler_NoStarvationGuard verifies high work waits while every worker is busy
// Given: Both workers held by low tasks
// When: A high task is submitted
// Then: It does not run until a worker is released
func TestScheduler_NoStarvationGuard(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)
	if err := s.Bootstrap(ctx, 1, 1); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	a := Spawn(s, blocker(started, release))
	b := Spawn(s, blocker(started, release))
	awaitSignals(t, started, 2)

	// Act
	high := SubmitFunc(s, func(ctx context.Context) (string, error) { return "high", nil }, PriorityHigh)
	time.Sleep(50 * time.Millisecond)

	// Assert
	if high.IsReady() {
		t.Fatal("high task ran while every worker was busy")
	}
	if got := s.LaneStats(PriorityHigh).Queued; got != 1 {
		t.Errorf("high queued = %d, want 1", got)
	}
	close(release)
	if v, err := high.Wait(ctx); err != nil || v != "high" {
		t.Fatalf("high.Wait() = (%q, %v)", v, err)
	}
	if _, err := WaitAll(ctx, []*TaskHandle[int]{a, b}); err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}
}

// TestScheduler_PanicIsContained verifies a panic fails only its own handle
// Given: A scheduler with one high worker
// When: A panicking task is followed by a normal one on the same lane
// Then: The first handle carries a *PanicError and the worker still runs the second
func TestScheduler_PanicIsContained(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)

	// Act
	bad := SubmitFunc(s, func(ctx context.Context) (int, error) { panic("kaboom") }, PriorityHigh)
	good := SubmitFunc(s, func(ctx context.Context) (int, error) { return 5, nil }, PriorityHigh)

	// Assert
	_, err := bad.Wait(ctx)
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if perr.Value != "kaboom" || perr.Lane != PriorityHigh || perr.TaskID != bad.ID() || len(perr.Stack) == 0 {
		t.Errorf("unexpected PanicError: %+v", perr)
	}
	if v, err := good.Wait(ctx); err != nil || v != 5 {
		t.Fatalf("good.Wait() = (%d, %v), want (5, nil)", v, err)
	}
	if st := s.Stats(); st.High.Panicked+st.Low.Panicked != 1 {
		t.Errorf("panicked = %d, want 1", st.High.Panicked+st.Low.Panicked)
	}
	if st := s.LaneStats(PriorityHigh); st.LiveWorkers != 1 {
		t.Errorf("live high workers = %d, want 1", st.LiveWorkers)
	}
}

// TestScheduler_TaskErrorIsReturned verifies a failed Poll reaches the handle
// Given: A computation that returns an error
// When: It is awaited
// Then: The same error is returned and counted as failed, not panicked
func TestScheduler_TaskErrorIsReturned(t *testing.T) {
	s := newTestScheduler(t, 1, 1)
	boom := errors.New("boom")

	_, err := SubmitFunc(s, func(ctx context.Context) (int, error) { return 0, boom }, PriorityLow).Wait(waitCtx(t))

	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	rec, ok := s.LastExecution()
	if !ok || !rec.Failed || rec.Panicked {
		t.Errorf("last record = %+v, want failed without panic", rec)
	}
}

// TestScheduler_YieldingRequeues verifies a pending task is resumed later on its origin lane
// Given: A low task that yields 4 times before finishing
// When: It runs to completion
// Then: The handle stays pending until the last resume, which is the 5th
func TestScheduler_YieldingRequeues(t *testing.T) {
	// Arrange
	const yields = 4
	s := newTestScheduler(t, 1, 1)
	var (
		handle     atomic.Pointer[TaskHandle[int]]
		resumes    atomic.Int32
		readyEarly atomic.Bool
	)
	c := ComputationFunc[int](func(ctx context.Context) Poll[int] {
		n := resumes.Add(1)
		if h := handle.Load(); h != nil && h.IsReady() {
			readyEarly.Store(true)
		}
		if n <= yields {
			return Pending[int]()
		}
		return Ready(int(n))
	})

	// Act
	h := SubmitNamed(s, "yielder", Computation[int](c), PriorityLow)
	handle.Store(h)
	v, err := h.Wait(waitCtx(t))

	// Assert
	if err != nil || v != yields+1 {
		t.Fatalf("Wait() = (%d, %v), want (%d, nil)", v, err, yields+1)
	}
	if readyEarly.Load() {
		t.Error("handle was ready before the final resume")
	}
	rec, ok := s.LastExecution()
	if !ok || rec.Name != "yielder" || rec.Resumes != yields+1 || rec.Lane != PriorityLow {
		t.Errorf("last record = %+v", rec)
	}
	st := s.Stats()
	if got := st.High.Yields + st.Low.Yields; got != yields {
		t.Errorf("yields = %d, want %d", got, yields)
	}
}

// TestScheduler_YieldingSubmittedTwice verifies a shared Yielding value splits its budget
// Given: One Yielding(4) value
// When: It is submitted twice on a lane with two workers
// Then: Both handles finish and the lanes record 4 yields in total
func TestScheduler_YieldingSubmittedTwice(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 2, 1)
	c := Yielding(4, func(ctx context.Context) (int, error) { return 9, nil })

	// Act
	values, err := WaitAll(waitCtx(t), []*TaskHandle[int]{
		Submit(s, c, PriorityHigh),
		Submit(s, c, PriorityHigh),
	})

	// Assert
	if err != nil || values[0] != 9 || values[1] != 9 {
		t.Fatalf("WaitAll() = (%v, %v), want ([9 9], nil)", values, err)
	}
	st := s.Stats()
	if yields := st.High.Yields + st.Low.Yields; yields != 4 {
		t.Errorf("yields = %d, want 4", yields)
	}
}

// TestScheduler_WaitAllCatchingMixedOutcomes verifies failures do not hide other results
// Given: 3 succeeding and 2 panicking tasks on mixed lanes
// When: WaitAllCatching collects them
// Then: 5 results come back in order with exactly the two panics failed
func TestScheduler_WaitAllCatchingMixedOutcomes(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 2, 1)
	ok := func(v int) Computation[int] {
		return Func(func(ctx context.Context) (int, error) { return v, nil })
	}
	bad := Func(func(ctx context.Context) (int, error) { panic("bad task") })

	// Act
	results := WaitAllCatching(waitCtx(t), []*TaskHandle[int]{
		Submit(s, ok(10), PriorityHigh),
		Submit(s, bad, PriorityLow),
		Submit(s, ok(20), PriorityLow),
		Submit(s, bad, PriorityHigh),
		Submit(s, ok(30), PriorityHigh),
	})

	// Assert
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	wantValues := map[int]int{0: 10, 2: 20, 4: 30}
	for i, r := range results {
		if want, isOK := wantValues[i]; isOK {
			if !r.OK() || r.Value != want {
				t.Errorf("results[%d] = %+v, want %d", i, r, want)
			}
			continue
		}
		if !errors.Is(r.Err, ErrTaskPanicked) {
			t.Errorf("results[%d].Err = %v, want ErrTaskPanicked", i, r.Err)
		}
	}
}

// TestScheduler_SpawnUsesLowLane verifies Spawn targets the low lane
// Given: A new scheduler
// When: A task is spawned
// Then: Its handle and execution record report the low lane
func TestScheduler_SpawnUsesLowLane(t *testing.T) {
	s := newTestScheduler(t, 1, 1)

	h := Spawn(s, Func(func(ctx context.Context) (string, error) { return "bg", nil }))
	if _, err := h.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if h.Lane() != PriorityLow {
		t.Errorf("Lane() = %s, want low", h.Lane())
	}
	if !s.LaneStats(PriorityLow).Started {
		t.Error("spawn should start the low lane")
	}
}

// TestScheduler_InvalidInputs verifies nil computations and unknown priorities
// Given: A scheduler
// When: A nil computation and an out-of-range priority are submitted
// Then: The nil one fails with ErrInvalidConfig and the other runs on the low lane
func TestScheduler_InvalidInputs(t *testing.T) {
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)

	if _, err := Submit[int](s, nil, PriorityHigh).Wait(ctx); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil computation err = %v, want ErrInvalidConfig", err)
	}

	h := SubmitFunc(s, func(ctx context.Context) (int, error) { return 1, nil }, Priority(9))
	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if h.Lane() != PriorityLow {
		t.Errorf("Lane() = %s, want low", h.Lane())
	}
}

// TestScheduler_Bootstrap verifies pre-warming both lanes
// Given: A new scheduler
// When: Bootstrap(2, 3) is called
// Then: Both lanes run with the requested sizes before any user task
func TestScheduler_Bootstrap(t *testing.T) {
	s := newTestScheduler(t, 1, 1)

	if err := s.Bootstrap(waitCtx(t), 2, 3); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	high, low := s.Sizing()
	if high != 2 || low != 3 {
		t.Errorf("Sizing() = (%d, %d), want (2, 3)", high, low)
	}
	st := s.Stats()
	if st.High.Workers != 2 || st.Low.Workers != 3 || st.High.Starts != 1 || st.Low.Starts != 1 {
		t.Errorf("stats = %+v", st)
	}
	assertEventually(t, time.Second, func() bool {
		return s.LaneStats(PriorityHigh).LiveWorkers == 2 && s.LaneStats(PriorityLow).LiveWorkers == 3
	})
}

// TestScheduler_BootstrapInvalidSize verifies sizes below 1 are rejected
// Given: A new scheduler
// When: Bootstrap is called with a zero or negative size
// Then: ErrInvalidPoolSize is returned and no lane starts
func TestScheduler_BootstrapInvalidSize(t *testing.T) {
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)

	for _, sizes := range [][2]int{{0, 1}, {1, 0}, {-2, 4}} {
		if err := s.Bootstrap(ctx, sizes[0], sizes[1]); !errors.Is(err, ErrInvalidPoolSize) {
			t.Errorf("Bootstrap(%d, %d) err = %v, want ErrInvalidPoolSize", sizes[0], sizes[1], err)
		}
	}
	if st := s.Stats(); st.High.Started || st.Low.Started {
		t.Error("invalid Bootstrap must not start any lane")
	}
}

// TestScheduler_BootstrapAfterLaneStarted verifies sizing is frozen by the first start
// Given: A scheduler whose low lane started with 1 worker
// When: Bootstrap asks for a different low size, then for the same one
// Then: The first call returns ErrSizingFrozen and the second succeeds
func TestScheduler_BootstrapAfterLaneStarted(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 1, 1)
	ctx := waitCtx(t)
	if _, err := Spawn(s, Func(func(ctx context.Context) (int, error) { return 0, nil })).Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Act and Assert
	if err := s.Bootstrap(ctx, 2, 3); !errors.Is(err, ErrSizingFrozen) {
		t.Fatalf("err = %v, want ErrSizingFrozen", err)
	}
	if err := s.Bootstrap(ctx, 2, 1); err != nil {
		t.Fatalf("Bootstrap with matching low size failed: %v", err)
	}
	if st := s.LaneStats(PriorityLow); st.Starts != 1 || st.Workers != 1 {
		t.Errorf("low lane = %+v, want one start with 1 worker", st)
	}
	if st := s.LaneStats(PriorityHigh); st.Workers != 2 {
		t.Errorf("high workers = %d, want 2", st.Workers)
	}
}

// TestScheduler_SubmitDuringBootstrap verifies submissions racing Bootstrap are all queued
// Given: A scheduler configured with 2 high and 2 low workers
// When: Bootstrap runs while two goroutines submit on both lanes
// Then: Every handle returns its own value, each lane started once with the configured size
func TestScheduler_SubmitDuringBootstrap(t *testing.T) {
	// Arrange
	const perLane = 50
	s := newTestScheduler(t, 2, 2)
	ctx := waitCtx(t)
	handles := map[Priority][]*TaskHandle[int]{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	begin := make(chan struct{})
	bootErr := make(chan error, 1)

	// Act
	go func() {
		<-begin
		bootErr <- s.Bootstrap(ctx, 2, 2)
	}()
	for _, lane := range Lanes {
		wg.Add(1)
		go func(lane Priority) {
			defer wg.Done()
			<-begin
			local := make([]*TaskHandle[int], 0, perLane)
			for i := 0; i < perLane; i++ {
				v := i
				local = append(local, SubmitFunc(s, func(ctx context.Context) (int, error) { return v, nil }, lane))
			}
			mu.Lock()
			handles[lane] = local
			mu.Unlock()
		}(lane)
	}
	close(begin)
	wg.Wait()

	// Assert
	if err := <-bootErr; err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	for _, lane := range Lanes {
		values, err := WaitAll(ctx, handles[lane])
		if err != nil {
			t.Fatalf("%s lane: WaitAll failed: %v", lane, err)
		}
		for i, v := range values {
			if v != i {
				t.Fatalf("%s lane: values[%d] = %d", lane, i, v)
			}
		}
		if st := s.LaneStats(lane); st.Starts != 1 || st.Workers != 2 {
			t.Errorf("%s lane = %+v, want one start with 2 workers", lane, st)
		}
	}
	if got := s.Stats().Submitted; got != 2*perLane+2 {
		t.Errorf("Submitted = %d, want %d", got, 2*perLane+2)
	}
}

// TestScheduler_StartUsesConfiguredSizing verifies Start pre-warms with config sizes
// Given: A scheduler configured with 2 high and 2 low workers
// When: Start is called
// Then: Both lanes are running with those sizes
func TestScheduler_StartUsesConfiguredSizing(t *testing.T) {
	s := newTestScheduler(t, 2, 2)

	if err := s.Start(waitCtx(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	st := s.Stats()
	if st.High.Workers != 2 || st.Low.Workers != 2 {
		t.Errorf("workers = (%d, %d), want (2, 2)", st.High.Workers, st.Low.Workers)
	}
}

// TestScheduler_LockOSThread verifies workers run when pinned to OS threads
// Given: A scheduler with LockOSThread enabled
// When: Tasks are submitted on both lanes
// Then: They complete normally
func TestScheduler_LockOSThread(t *testing.T) {
	s := newTestSchedulerWithConfig(t, &SchedulerConfig{HighWorkers: 1, LowWorkers: 1, LockOSThread: true})
	fn := func(ctx context.Context) (int, error) { return 1, nil }

	values, err := WaitAll(waitCtx(t), []*TaskHandle[int]{
		SubmitFunc(s, fn, PriorityHigh),
		SubmitFunc(s, fn, PriorityLow),
	})

	if err != nil || values[0]+values[1] != 2 {
		t.Fatalf("WaitAll() = (%v, %v)", values, err)
	}
}
