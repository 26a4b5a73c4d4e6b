package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSlice(t *testing.T) {
	var s StringSlice
	_ = s.Set("slow")
	_ = s.Set("beta, eu-west ,")
	assert.Equal(t, StringSlice{"slow", "beta", "eu-west"}, s)
	assert.Equal(t, "slow,beta,eu-west", s.String())

	s.Reset()
	assert.Empty(t, s)
}
