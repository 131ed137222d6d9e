package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithBaseFields(t *testing.T) {
	var buf bytes.Buffer
	entry := New(Options{Service: "api", Env: "test", Level: "debug", Output: &buf})

	entry.WithField("order_id", "o-1").Debug("loaded order")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "o-1", line["order_id"])
	assert.Equal(t, "loaded order", line["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.WarnLevel, parseLevel("WARNING"))
	assert.Equal(t, log.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, log.InfoLevel, parseLevel("verbose"))
}
