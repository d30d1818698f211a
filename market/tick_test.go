package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1000.0, NormalizePrice(-1000))
	assert.Equal(t, 1000.0, NormalizePrice(1000))
	assert.Equal(t, 0.0, NormalizePrice(0))
}
