package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/estate-settlement/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("StdoutJSON", func(t *testing.T) {
		log, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, log.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
		assert.Equal(t, os.Stdout, log.Out)
	})

	t.Run("UnknownLevelFallsBackToInfo", func(t *testing.T) {
		log, err := NewLogger(config.LoggingConfig{Level: "loud", Format: "text"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, log.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
	})

	t.Run("FileOutputIsRotated", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		log, err := NewLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: path, MaxSize: 1})
		require.NoError(t, err)

		log.WithField("fee_id", 7).Info("fee confirmed")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"fee_id":7`)
		assert.Contains(t, string(data), "fee confirmed")
	})
}
