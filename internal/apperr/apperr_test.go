package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	modelMissing := fmt.Errorf("model artifact: %w", ErrNotFound)
	wrapped := fmt.Errorf("predict: %w", modelMissing)

	assert.Equal(t, ErrNotFound, Kind(wrapped))
	assert.Equal(t, ErrDataQuality, Kind(fmt.Errorf("month %q: %w", "Smarch", ErrDataQuality)))
	assert.Nil(t, Kind(errors.New("boom")))
	assert.Nil(t, Kind(nil))
}
