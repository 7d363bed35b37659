package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInvocationError(t *testing.T) {
	assert.True(t, IsInvocationError(&ModelError{Message: "refused"}))
	assert.True(t, IsInvocationError(&NetworkError{Message: "timeout"}))
	assert.True(t, IsInvocationError(fmt.Errorf("wrapped: %w", &NetworkError{Message: "eof"})))
	assert.False(t, IsInvocationError(errors.New("other")))
	assert.False(t, IsInvocationError(nil))
}

func TestIsConfigurationError(t *testing.T) {
	err := fmt.Errorf("startup: %w", &ConfigurationError{Field: "collector.secret_key", Reason: "missing"})
	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsConfigurationError(errors.New("other")))
}

func TestErrCollectorUnavailable_Wrapping(t *testing.T) {
	err := fmt.Errorf("start span: %w", ErrCollectorUnavailable)
	assert.ErrorIs(t, err, ErrCollectorUnavailable)
}
