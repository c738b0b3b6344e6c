package order_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/vocab"
)

func TestOrder_AppendDeduplicates(t *testing.T) {
	t.Parallel()

	var o order.Order
	added, err := o.Append("burger", "fries")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !slices.Equal(added, []vocab.Phrase{"burger", "fries"}) {
		t.Errorf("added = %v", added)
	}

	added, err = o.Append("fries", "cola", "burger")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !slices.Equal(added, []vocab.Phrase{"cola"}) {
		t.Errorf("second added = %v, want [cola]", added)
	}
	if want := []vocab.Phrase{"burger", "fries", "cola"}; !slices.Equal(o.Items(), want) {
		t.Errorf("Items = %v, want %v", o.Items(), want)
	}
	if !o.Contains("cola") || o.Contains("salad") {
		t.Error("Contains reports wrong membership")
	}
}

func TestOrder_Freeze(t *testing.T) {
	t.Parallel()

	var o order.Order
	_, _ = o.Append("burger")
	o.Freeze()
	if !o.Frozen() {
		t.Fatal("Frozen = false after Freeze")
	}
	if _, err := o.Append("fries"); !errors.Is(err, order.ErrOrderFrozen) {
		t.Fatalf("Append after Freeze err = %v, want ErrOrderFrozen", err)
	}
	if o.Len() != 1 {
		t.Errorf("Len = %d, want 1", o.Len())
	}
}

func TestOrder_ItemsIsCopy(t *testing.T) {
	t.Parallel()

	var o order.Order
	_, _ = o.Append("burger")
	items := o.Items()
	items[0] = "mutated"
	if o.Items()[0] != "burger" {
		t.Error("mutating Items() changed the order")
	}
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	var o order.Order
	_, _ = o.Append("burger", "cola")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	rec := order.NewRecord("s-1", &o, now)
	if rec.SessionID != "s-1" {
		t.Errorf("SessionID = %q", rec.SessionID)
	}
	if !slices.Equal(rec.Items, []string{"burger", "cola"}) {
		t.Errorf("Items = %v", rec.Items)
	}
	if rec.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", rec.CreatedAt.Location())
	}
}

func TestMemStore_AppendAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := order.NewMemStore(order.Record{Items: []string{"burger", "fries"}})

	if err := s.Append(ctx, order.Record{Items: []string{"cola"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	h, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(h))
	}
	if !slices.Equal(h[1], []string{"cola"}) {
		t.Errorf("history[1] = %v", h[1])
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestMemStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var s order.MemStore
	if _, err := s.Load(ctx); !errors.Is(err, order.ErrHistoryUnavailable) {
		t.Errorf("Load err = %v, want ErrHistoryUnavailable", err)
	}
	if err := s.Append(ctx, order.Record{Items: []string{"x"}}); !errors.Is(err, order.ErrHistoryUnavailable) {
		t.Errorf("Append err = %v, want ErrHistoryUnavailable", err)
	}
}

func TestMemStore_AppendCopiesItems(t *testing.T) {
	t.Parallel()

	s := order.NewMemStore()
	items := []string{"burger"}
	_ = s.Append(context.Background(), order.Record{Items: items})
	items[0] = "mutated"

	if got := s.Records()[0].Items[0]; got != "burger" {
		t.Errorf("stored item = %q, want burger", got)
	}
}

func TestMemStore_LoadReturnsCopies(t *testing.T) {
	t.Parallel()

	s := order.NewMemStore(order.Record{Items: []string{"burger", "fries"}})
	h, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h[0][0] = "mutated"

	h, err = s.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if got := h[0][0]; got != "burger" {
		t.Errorf("stored item after caller mutation = %q, want burger", got)
	}
}
