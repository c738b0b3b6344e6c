package cooccur_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/MrWong99/ordervox/internal/cooccur"
	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/vocab"
)

func burgerFixture() (*vocab.Vocabulary, order.History) {
	v := vocab.MustLoad("burger", "fries", "cola", "salad")
	h := order.History{
		{"burger", "fries"},
		{"burger", "cola"},
		{"fries", "cola"},
	}
	return v, h
}

func TestBuildMatrix_Counts(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, v)

	if m.Size() != 4 {
		t.Fatalf("Size = %d, want 4", m.Size())
	}
	tests := []struct {
		i, j, want int
	}{
		{0, 1, 1}, // burger-fries
		{0, 2, 1}, // burger-cola
		{1, 2, 1}, // fries-cola
		{0, 3, 0}, // burger-salad
		{3, 3, 0},
	}
	for _, tt := range tests {
		if got := m.At(tt.i, tt.j); got != tt.want {
			t.Errorf("At(%d,%d) = %d, want %d", tt.i, tt.j, got, tt.want)
		}
	}
}

func TestBuildMatrix_SkipsUnknownAndDuplicates(t *testing.T) {
	t.Parallel()

	v := vocab.MustLoad("burger", "fries")
	h := order.History{
		{"burger", "discontinued wrap", "fries"},
		{"Burger", "burger", "FRIES", "fries"},
		{},
		{"discontinued wrap"},
	}
	m := cooccur.BuildMatrix(h, v)
	if got := m.At(0, 1); got != 2 {
		t.Errorf("At(burger,fries) = %d, want 2", got)
	}
	if got := m.At(0, 0); got != 0 {
		t.Errorf("diagonal = %d, want 0", got)
	}
}

func TestBuildMatrix_Symmetric(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	v := vocab.MustLoad(names...)
	rng := rand.New(rand.NewPCG(7, 11))

	var h order.History
	for range 200 {
		k := rng.IntN(len(names)) + 1
		items := make([]string, k)
		for i := range items {
			items[i] = names[rng.IntN(len(names))]
		}
		h = append(h, items)
	}

	m := cooccur.BuildMatrix(h, v)
	for i := range m.Size() {
		if m.At(i, i) != 0 {
			t.Errorf("diagonal[%d] = %d", i, m.At(i, i))
		}
		for j := range m.Size() {
			if m.At(i, j) != m.At(j, i) {
				t.Fatalf("At(%d,%d)=%d != At(%d,%d)=%d", i, j, m.At(i, j), j, i, m.At(j, i))
			}
		}
	}

	// Rebuilding is deterministic.
	again := cooccur.BuildMatrix(h, v)
	for i := range m.Size() {
		if !slices.Equal(m.Row(i), again.Row(i)) {
			t.Fatalf("row %d differs between builds", i)
		}
	}
}

func TestMatrix_RowIsCopy(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, v)
	row := m.Row(0)
	row[1] = 99
	if m.At(0, 1) != 1 {
		t.Error("mutating Row() changed the matrix")
	}
}

func TestMatrix_AtPanicsOutOfRange(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, v)
	defer func() {
		if recover() == nil {
			t.Error("At(4,0) did not panic")
		}
	}()
	m.At(4, 0)
}

func TestRecommend_DeterministicTieBreak(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, v)

	got := cooccur.Recommend([]vocab.Phrase{"burger"}, m, v, 2)
	want := []vocab.Phrase{"fries", "cola"}
	if !slices.Equal(got, want) {
		t.Fatalf("Recommend = %v, want %v", got, want)
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	v := vocab.MustLoad("burger", "fries", "cola", "salad", "shake", "nuggets")
	h := order.History{
		{"burger", "fries", "cola"},
		{"burger", "fries"},
		{"burger", "shake"},
		{"fries", "shake"},
		{"salad"},
	}
	m := cooccur.BuildMatrix(h, v)

	tests := []struct {
		name    string
		current []vocab.Phrase
		topN    int
		want    []vocab.Phrase
	}{
		{
			name:    "ranked by score",
			current: []vocab.Phrase{"burger"},
			topN:    3,
			want:    []vocab.Phrase{"fries", "cola", "shake"},
		},
		{
			name:    "scores summed across current items",
			current: []vocab.Phrase{"burger", "fries"},
			topN:    3,
			want:    []vocab.Phrase{"cola", "shake"},
		},
		{
			name:    "truncated to topN",
			current: []vocab.Phrase{"burger"},
			topN:    1,
			want:    []vocab.Phrase{"fries"},
		},
		{
			name:    "default topN",
			current: []vocab.Phrase{"burger"},
			topN:    0,
			want:    []vocab.Phrase{"fries", "cola", "shake"},
		},
		{
			name:    "no co-occurrence yields empty",
			current: []vocab.Phrase{"salad"},
			topN:    3,
			want:    []vocab.Phrase{},
		},
		{
			name:    "never seen item yields empty",
			current: []vocab.Phrase{"nuggets"},
			topN:    3,
			want:    []vocab.Phrase{},
		},
		{
			name:    "unknown phrases ignored",
			current: []vocab.Phrase{"pizza", "burger"},
			topN:    1,
			want:    []vocab.Phrase{"fries"},
		},
		{
			name:    "empty current order",
			current: nil,
			topN:    3,
			want:    []vocab.Phrase{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cooccur.Recommend(tt.current, m, v, tt.topN)
			if got == nil {
				t.Fatal("Recommend returned nil, want non-nil slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Recommend(%v) = %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestRecommend_ExcludesCurrentItems(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c", "d", "e"}
	v := vocab.MustLoad(names...)
	rng := rand.New(rand.NewPCG(1, 2))
	var h order.History
	for range 100 {
		h = append(h, []string{names[rng.IntN(5)], names[rng.IntN(5)], names[rng.IntN(5)]})
	}
	m := cooccur.BuildMatrix(h, v)

	for range 50 {
		var current []vocab.Phrase
		for _, n := range names {
			if rng.IntN(2) == 0 {
				current = append(current, vocab.Phrase(n))
			}
		}
		for _, p := range cooccur.Recommend(current, m, v, 5) {
			if slices.Contains(current, p) {
				t.Fatalf("Recommend(%v) returned current item %q", current, p)
			}
		}
	}
}

func TestRecommend_CurrentItemsFoldCase(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, v)
	got := cooccur.Recommend([]vocab.Phrase{"Burger", " FRIES "}, m, v, 3)
	if want := []vocab.Phrase{"cola"}; !slices.Equal(got, want) {
		t.Errorf("Recommend(Burger, FRIES) = %v, want %v", got, want)
	}
}

func TestRecommend_MismatchedMatrix(t *testing.T) {
	t.Parallel()

	v, h := burgerFixture()
	m := cooccur.BuildMatrix(h, vocab.MustLoad("burger", "fries"))
	if got := cooccur.Recommend([]vocab.Phrase{"burger"}, m, v, 3); len(got) != 0 {
		t.Errorf("Recommend with mismatched matrix = %v, want empty", got)
	}
	if got := cooccur.Recommend([]vocab.Phrase{"burger"}, nil, v, 3); len(got) != 0 {
		t.Errorf("Recommend with nil matrix = %v, want empty", got)
	}
}

func BenchmarkBuildMatrix(b *testing.B) {
	names := make([]string, 200)
	for i := range names {
		names[i] = "item " + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	v := vocab.MustLoad(names...)
	rng := rand.New(rand.NewPCG(3, 4))
	h := make(order.History, 5000)
	for i := range h {
		items := make([]string, 4)
		for k := range items {
			items[k] = names[rng.IntN(len(names))]
		}
		h[i] = items
	}

	for b.Loop() {
		cooccur.BuildMatrix(h, v)
	}
}
