package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingBeforeInitializeIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("before initialize")
		ErrorCtx(context.Background(), errors.New("boom"))
		Flush(time.Millisecond)
	})
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "production", cfg: Config{Service: "reconciler"}},
		{name: "debug", cfg: Config{Debug: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Initialize(tt.cfg))
			require.NotNil(t, Default())
			assert.NotPanics(t, func() {
				InfoCtx(context.TODO(), "initialized")
				Warn("warned")
				Error(nil)
			})
		})
	}
}

func TestInitialize_InvalidSentryDSN(t *testing.T) {
	err := Initialize(Config{SentryDSN: "::not-a-dsn::"})
	assert.Error(t, err)
}
