package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigure(t *testing.T) {
	defer func() {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}()

	assert.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	assert.Error(t, Configure("loud", "text"))
	assert.Error(t, Configure("info", "xml"))
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	WithField("address", "T123").Info("wallet created")
	assert.Contains(t, buf.String(), "address=T123")
}
