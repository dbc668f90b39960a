package stack

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnique_Empty(t *testing.T) {
	s := NewUnique[int](nil)

	_, ok := s.Top()
	assert.False(t, ok)
	_, ok = s.Pop()
	assert.False(t, ok)
	_, ok = s.Above(1)
	assert.False(t, ok)
	assert.False(t, s.Erase(1))
	assert.False(t, s.MoveToTop(1))
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Items())
}

func TestUnique_PushPop(t *testing.T) {
	s := NewUnique[string](nil)
	s.Push("a")
	s.Push("b")
	s.Push("c")

	assert.Equal(t, 3, s.Size())
	top, ok := s.Top()
	require.True(t, ok)
	assert.Equal(t, "c", top)

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.False(t, s.Contains("c"))
	assert.Equal(t, []string{"a", "b"}, s.Items())
}

func TestUnique_PushExistingMovesToTop(t *testing.T) {
	s := NewUnique[string](nil)
	s.Push("a")
	s.Push("b")
	s.Push("c")
	s.Push("a")

	assert.Equal(t, 3, s.Size())
	assert.Equal(t, []string{"b", "c", "a"}, s.Items())
}

func TestUnique_EraseMiddle(t *testing.T) {
	s := NewUnique[int](nil)
	for i := 1; i <= 4; i++ {
		s.Push(i)
	}

	assert.True(t, s.Erase(2))
	assert.False(t, s.Erase(2))
	assert.Equal(t, []int{1, 3, 4}, s.Items())

	above, ok := s.Above(1)
	require.True(t, ok)
	assert.Equal(t, 3, above)
}

func TestUnique_MoveToTop(t *testing.T) {
	s := NewUnique[int](nil)
	s.Push(1)
	s.Push(2)
	s.Push(3)

	assert.True(t, s.MoveToTop(1))
	assert.Equal(t, []int{2, 3, 1}, s.Items())
	top, _ := s.Top()
	assert.Equal(t, 1, top)
}

func TestUnique_Above(t *testing.T) {
	s := NewUnique[string](nil)
	s.Push("bottom")
	s.Push("middle")
	s.Push("top")

	tests := []struct {
		name   string
		of     string
		want   string
		wantOK bool
	}{
		{"bottom", "bottom", "middle", true},
		{"middle", "middle", "top", true},
		{"top has nothing above", "top", "", false},
		{"absent element", "missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Above(tt.of)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnique_Clear(t *testing.T) {
	s := NewUnique[int](nil)
	s.Push(1)
	s.Push(2)
	s.Clear()

	assert.Equal(t, 0, s.Size())
	assert.False(t, s.Contains(1))
	s.Push(1)
	assert.Equal(t, []int{1}, s.Items())
}

func TestUnique_PointerIdentity(t *testing.T) {
	type item struct{ name string }
	a := &item{name: "same"}
	b := &item{name: "same"}

	s := NewUnique[*item](nil)
	s.Push(a)
	s.Push(b)

	assert.Equal(t, 2, s.Size())
	assert.True(t, s.Erase(a))
	assert.True(t, s.Contains(b))
}

// Random push/erase/move sequences must never produce duplicates and must
// agree with a naive slice model.
func TestUnique_RandomSequencesStayUnique(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := NewUnique[int](nil)
	var naive []int

	remove := func(v int) {
		for i, x := range naive {
			if x == v {
				naive = append(naive[:i], naive[i+1:]...)
				return
			}
		}
	}

	for range 2000 {
		v := r.IntN(8)
		switch r.IntN(4) {
		case 0, 1:
			s.Push(v)
			remove(v)
			naive = append(naive, v)
		case 2:
			s.Erase(v)
			remove(v)
		case 3:
			if s.MoveToTop(v) {
				remove(v)
				naive = append(naive, v)
			}
		}

		items := s.Items()
		require.Equal(t, len(naive), s.Size())
		if len(naive) == 0 {
			require.Empty(t, items)
		} else {
			require.Equal(t, naive, items)
		}

		seen := make(map[int]bool)
		for _, x := range items {
			require.False(t, seen[x], "duplicate element %d", x)
			seen[x] = true
		}
	}
}
