package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_PutGet(t *testing.T) {
	s := NewState("e1")

	s2 := s.Put(Position{X: 1, Y: 2})

	got, ok := s2.Get(TypePosition)
	require.True(t, ok)
	require.Equal(t, Position{X: 1, Y: 2}, got)

	// original state untouched
	require.False(t, s.Has(TypePosition))

	// overwrite same type
	s3 := s2.Put(Position{X: 5, Y: 5})
	got, _ = s3.Get(TypePosition)
	require.Equal(t, Position{X: 5, Y: 5}, got)
	require.Len(t, s3.Attributes, 1)
}

func TestState_Fetch(t *testing.T) {
	s := NewState("e1", Health{Current: 10, Max: 10})

	a, err := s.Fetch(TypeHealth)
	require.NoError(t, err)
	require.Equal(t, Health{Current: 10, Max: 10}, a)

	_, err = s.Fetch(TypePosition)
	require.ErrorIs(t, err, ErrAttributeNotFound)
}

func TestState_Update(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		s := NewState("e1", Health{Current: 10, Max: 10})
		s2 := s.Update(TypeHealth, func(a Attribute) Attribute {
			h := a.(Health)
			h.Current -= 3
			return h
		})
		got, _ := s2.Get(TypeHealth)
		require.Equal(t, Health{Current: 7, Max: 10}, got)

		// prior value still visible through the old state
		old, _ := s.Get(TypeHealth)
		require.Equal(t, Health{Current: 10, Max: 10}, old)
	})

	t.Run("absent is a no-op", func(t *testing.T) {
		s := NewState("e1")
		s2 := s.Update(TypeHealth, func(a Attribute) Attribute {
			t.Fatal("transform must not run for an absent type")
			return a
		})
		require.False(t, s2.Has(TypeHealth))
		require.Len(t, s2.Attributes, 0)
	})
}

func TestState_Remove(t *testing.T) {
	s := NewState("e1", Nick{Value: "rat"})

	s2 := s.Remove(TypeNick)
	require.False(t, s2.Has(TypeNick))
	require.True(t, s.Has(TypeNick))

	// removing an absent type is a no-op
	s3 := s2.Remove(TypeNick)
	require.Len(t, s3.Attributes, 0)
}

func TestState_Take(t *testing.T) {
	s := NewState("e1",
		Position{X: 1, Y: 1},
		Health{Current: 5, Max: 5},
		Nick{Value: "rat"},
	)

	sub := s.Take(TypePosition, TypeNick, "no-such-type")
	require.Len(t, sub, 2)
	require.Equal(t, Position{X: 1, Y: 1}, sub[TypePosition])
	require.Equal(t, Nick{Value: "rat"}, sub[TypeNick])
}

func TestState_Transaction(t *testing.T) {
	s := NewState("e1", Position{X: 1, Y: 1}, Health{Current: 5, Max: 5})

	s2 := s.Transaction(func(attrs Attributes) Attributes {
		delete(attrs, TypePosition)
		attrs[TypeNick] = Nick{Value: "ghost"}
		return attrs
	})

	require.False(t, s2.Has(TypePosition))
	require.True(t, s2.Has(TypeNick))
	require.True(t, s2.Has(TypeHealth))

	// original mapping untouched by the transform
	require.True(t, s.Has(TypePosition))
	require.False(t, s.Has(TypeNick))

	t.Run("nil result becomes empty mapping", func(t *testing.T) {
		s3 := s.Transaction(func(Attributes) Attributes { return nil })
		require.NotNil(t, s3.Attributes)
		require.Len(t, s3.Attributes, 0)
	})
}

func TestState_Snapshot(t *testing.T) {
	s := NewState("e1", Position{X: 1, Y: 1})
	snap := s.Snapshot()

	snap.Attributes[TypeNick] = Nick{Value: "clone"}
	require.False(t, s.Has(TypeNick), "snapshot must not alias the source map")
	require.Equal(t, "e1", snap.ID)
}
