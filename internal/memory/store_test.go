package memory

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestStore(maxSessions int, timeout time.Duration) *Store {
	return NewStore(maxSessions, timeout, zap.NewNop())
}

func TestGetOrCreateMintsAndReuses(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)

	id := store.GetOrCreate("")
	if id == "" {
		t.Fatal("expected fresh session id")
	}
	if got := store.History(id); len(got) != 0 {
		t.Fatalf("fresh session should be empty, got %d exchanges", len(got))
	}

	again := store.GetOrCreate(id)
	if again != id {
		t.Fatalf("existing id should be returned as-is: got %s want %s", again, id)
	}

	other := store.GetOrCreate("never-seen")
	if other == "never-seen" {
		t.Fatal("unknown id must not be adopted, a new one should be minted")
	}
}

func TestAddExchangeTrimsToTokenBudget(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)
	id := store.GetOrCreate("")

	const n = 35
	for i := 0; i < n; i++ {
		store.AddExchange(id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
	}

	history := store.History(id)
	if len(history) != 20 {
		t.Fatalf("expected cap of 20 exchanges, got %d", len(history))
	}
	if history[0].UserQuery != "q15" || history[19].UserQuery != "q34" {
		t.Fatalf("expected most recent exchanges kept, got %s..%s",
			history[0].UserQuery, history[19].UserQuery)
	}
}

func TestAddExchangeBelowCapKeepsAll(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)
	id := store.GetOrCreate("")

	for i := 0; i < 5; i++ {
		store.AddExchange(id, fmt.Sprintf("q%d", i), "a", nil)
	}
	if got := len(store.History(id)); got != 5 {
		t.Fatalf("expected 5 exchanges, got %d", got)
	}
}

func TestPriceMentionedFlagLatches(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)
	id := store.GetOrCreate("")

	if store.HasPriceBeenMentioned(id) {
		t.Fatal("flag should start false")
	}
	store.MarkPriceMentioned(id)
	if !store.HasPriceBeenMentioned(id) {
		t.Fatal("flag should be true after marking")
	}
	store.MarkPriceMentioned(id)
	if !store.HasPriceBeenMentioned(id) {
		t.Fatal("flag must stay true")
	}
}

func TestContextForPrompt(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)
	id := store.GetOrCreate("")

	if got := store.ContextForPrompt(id); got != "" {
		t.Fatalf("empty history should render empty context, got %q", got)
	}

	long := strings.Repeat("x", 400)
	store.AddExchange(id, "what is revenue?", long, nil)

	ctx := store.ContextForPrompt(id)
	if !strings.Contains(ctx, "Exchange 1:") {
		t.Error("context should label exchanges")
	}
	if !strings.Contains(ctx, "USER: what is revenue?") {
		t.Error("context should include the user query")
	}
	if !strings.Contains(ctx, strings.Repeat("x", 300)+"...") {
		t.Error("long responses should be truncated at 300 chars with ellipsis")
	}
	if strings.Contains(ctx, strings.Repeat("x", 301)) {
		t.Error("truncation should not leak beyond 300 chars")
	}
}

func TestCapacityEvictionDropsOldest(t *testing.T) {
	store := newTestStore(3, 24*time.Hour)
	base := time.Unix(1700000000, 0)
	clock := base
	store.now = func() time.Time { return clock }

	var ids []string
	for i := 0; i < 4; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		ids = append(ids, store.GetOrCreate(""))
	}

	if got := store.ActiveSessions(); got != 3 {
		t.Fatalf("expected 3 sessions after eviction, got %d", got)
	}
	if _, ok := store.SessionInfo(ids[0]); ok {
		t.Fatal("oldest session should have been evicted")
	}
	if _, ok := store.SessionInfo(ids[3]); !ok {
		t.Fatal("newest session should survive")
	}
}

func TestExpirySweep(t *testing.T) {
	store := newTestStore(1000, time.Hour)
	base := time.Unix(1700000000, 0)
	clock := base
	store.now = func() time.Time { return clock }

	stale := store.GetOrCreate("")

	clock = base.Add(2 * time.Hour)
	fresh := store.GetOrCreate("")

	if _, ok := store.SessionInfo(stale); ok {
		t.Fatal("stale session should have expired")
	}
	if _, ok := store.SessionInfo(fresh); !ok {
		t.Fatal("fresh session should exist")
	}
}

func TestClearAndCounts(t *testing.T) {
	store := newTestStore(1000, 24*time.Hour)
	id := store.GetOrCreate("")
	store.AddExchange(id, "q", "a", nil)

	if store.TotalExchanges() != 1 {
		t.Fatalf("expected 1 total exchange, got %d", store.TotalExchanges())
	}
	if !store.Clear(id) {
		t.Fatal("clearing an existing session should report true")
	}
	if store.Clear(id) {
		t.Fatal("clearing twice should report false")
	}
	if store.ActiveSessions() != 0 {
		t.Fatal("store should be empty after clear")
	}
}
