package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewGCSArchiver_DisabledWithoutBucket(t *testing.T) {
	a, err := NewGCSArchiver(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAlreadyExists(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"precondition failed", &googleapi.Error{Code: http.StatusPreconditionFailed}, true},
		{"wrapped", fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed}), true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, alreadyExists(tt.err))
		})
	}
}
