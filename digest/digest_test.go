package digest

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestAccumulator_MatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	a := New()
	_, err := a.Write(data[:10])
	require.NoError(t, err)
	_, err = a.Write(data[10:])
	require.NoError(t, err)

	assert.Equal(t, Digest(blake2b.Sum256(data)), a.Sum())
	assert.Equal(t, int64(len(data)), a.Len())
}

func TestAccumulator_SumIsFinal(t *testing.T) {
	a := New()
	_, _ = a.Write([]byte("abc"))
	first := a.Sum()

	_, err := a.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrFinalized)
	assert.Equal(t, first, a.Sum())
}

func TestAccumulator_InstancesAreIndependent(t *testing.T) {
	w, r := New(), New()
	_, _ = w.Write([]byte("write side"))
	_, _ = r.Write([]byte("read side"))
	assert.NotEqual(t, w.Sum(), r.Sum())
}

func TestParse(t *testing.T) {
	d := Digest(blake2b.Sum256(nil))
	got, err := Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = Parse("abcd")
	assert.Error(t, err)
	_, err = Parse("zz")
	assert.Error(t, err)

	var u Digest
	require.NoError(t, u.UnmarshalText([]byte(d.String())))
	assert.Equal(t, d, u)
	assert.True(t, Digest{}.IsZero())
}

func TestProperty_HashingIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same bytes in any split give the same digest", prop.ForAll(
		func(data []byte, split int) bool {
			if split > len(data) {
				split = len(data)
			}
			a, b := New(), New()
			_, _ = a.Write(data)
			_, _ = b.Write(data[:split])
			_, _ = b.Write(data[split:])
			return a.Sum() == b.Sum()
		},
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
