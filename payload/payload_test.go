package payload

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(g *Generator) (sizes []int, all []byte) {
	for {
		c, ok := g.Next()
		if !ok {
			return sizes, all
		}
		sizes = append(sizes, len(c))
		all = append(all, c...)
	}
}

func TestGenerator_ChunkSizes(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		chunk int64
		want  []int
	}{
		{name: "exact multiple", total: 1 << 20, chunk: 256 << 10, want: []int{262144, 262144, 262144, 262144}},
		{name: "remainder", total: 10, chunk: 4, want: []int{4, 4, 2}},
		{name: "chunk larger than file", total: 3, chunk: 64, want: []int{3}},
		{name: "empty", total: 0, chunk: 64, want: nil},
	}
	for _, tt := range tests {
		for _, p := range []Pattern{Random, Zeros} {
			t.Run(tt.name+"/"+string(p), func(t *testing.T) {
				g, err := New(p, tt.total, tt.chunk)
				require.NoError(t, err)
				sizes, _ := drain(g)
				assert.Equal(t, tt.want, sizes)
				assert.Equal(t, int64(len(tt.want)), g.Chunks())
				assert.Equal(t, tt.total, g.Produced())
			})
		}
	}
}

func TestGenerator_ZerosAreZero(t *testing.T) {
	g, err := New(Zeros, 5000, 1024)
	require.NoError(t, err)
	_, all := drain(g)
	assert.Equal(t, make([]byte, 5000), all)
}

func TestGenerator_RandomChunksDoNotAlias(t *testing.T) {
	g, err := New(Random, 8192, 4096)
	require.NoError(t, err)

	first, ok := g.Next()
	require.True(t, ok)
	snapshot := bytes.Clone(first)
	second, ok := g.Next()
	require.True(t, ok)

	assert.Equal(t, snapshot, first, "first chunk must survive the second call")
	assert.NotEqual(t, first, second)
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New(Random, 10, 0)
	assert.Error(t, err)
	_, err = New(Random, -1, 10)
	assert.Error(t, err)
	_, err = New("ones", 10, 10)
	assert.Error(t, err)
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("zeros")
	require.NoError(t, err)
	assert.Equal(t, Zeros, p)
	_, err = ParsePattern("ones")
	assert.Error(t, err)
}

func TestProperty_ChunksSumToTotal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("chunk sizes sum to the declared total", prop.ForAll(
		func(total, chunk int64) bool {
			g, err := New(Zeros, total, chunk)
			if err != nil {
				return false
			}
			sizes, _ := drain(g)
			var sum int64
			for i, s := range sizes {
				if i < len(sizes)-1 && int64(s) != chunk {
					return false
				}
				sum += int64(s)
			}
			return sum == total && int64(len(sizes)) == g.Chunks()
		},
		gen.Int64Range(0, 1<<20),
		gen.Int64Range(1, 1<<16),
	))

	properties.TestingRun(t)
}
