package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Node A":           "node-a",
		"  Tōkyō  Node 01": "tokyo-node-01",
		"Café--Paris!":     "cafe-paris",
		"日本":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), in)
	}
}

func TestRandom(t *testing.T) {
	a, b := Random(10), Random(10)
	assert.Len(t, a, 10)
	assert.NotEqual(t, a, b)
	assert.Len(t, Random(0), 32)
}
