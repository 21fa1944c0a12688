package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailSafeCB_Execute(t *testing.T) {
	tests := []struct {
		name    string
		task    func(int) (int, error)
		want    int
		wantErr bool
	}{
		{name: "success", task: func(i int) (int, error) { return i * 2, nil }, want: 10},
		{name: "failure", task: func(i int) (int, error) { return 0, errors.New("task failed") }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewFailSafe[int, int](Config{Name: "test"})
			got, err := cb.Execute(5, tt.task)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailSafeCB_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewFailSafe[int, int](Config{Name: "test", FailureThreshold: 3, Delay: time.Hour})
	calls := 0
	failing := func(int) (int, error) {
		calls++
		return 0, errors.New("down")
	}
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(1, failing)
		assert.Error(t, err)
	}
	assert.True(t, cb.IsOpen())

	_, err := cb.Execute(1, failing)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 3, calls)
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, uint(5), c.FailureThreshold)
	assert.Equal(t, uint(1), c.SuccessThreshold)
	assert.Equal(t, 10*time.Second, c.Delay)
}
