package wgrender

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(b *bytes.Buffer) []string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestDefaultLogger_FiltersAndRoutes(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger("gpu", LevelInfo, &out, &errOut)

	l.Debugf("hidden %d", 1)
	l.Infof("pipeline %s", "basic")
	l.Warnf("slow frame")
	l.Errorf("device lost")

	info := lines(&out)
	require.Len(t, info, 1)
	assert.True(t, strings.HasSuffix(info[0], "[gpu] INFO: pipeline basic"), info[0])
	errs := lines(&errOut)
	require.Len(t, errs, 2)
	assert.True(t, strings.HasSuffix(errs[0], "[gpu] WARN: slow frame"), errs[0])
	assert.True(t, strings.HasSuffix(errs[1], "[gpu] ERROR: device lost"), errs[1])

	out.Reset()
	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.Level())
	l.Debugf("shown")
	require.Len(t, lines(&out), 1)

	errOut.Reset()
	l.SetLevel(LevelError)
	l.Warnf("dropped")
	l.Errorf("kept")
	assert.Len(t, lines(&errOut), 1)
}

func TestDefaultLogger_NoPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLogger("", LevelDebug, &out, &out)
	l.Debugf("x=%v", 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), "DEBUG: x=3"))
}

func TestLevel_Text(t *testing.T) {
	var lv Level
	require.NoError(t, lv.UnmarshalText([]byte("Warn")))
	assert.Equal(t, LevelWarn, lv)
	assert.Error(t, lv.UnmarshalText([]byte("verbose")))

	text, err := LevelError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "error", string(text))
	_, err = Level(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestConfig_LogLevel(t *testing.T) {
	cfg, err := ParseConfig([]byte("log_level: error\n"))
	require.NoError(t, err)
	assert.Equal(t, LevelError, cfg.LogLevel)
	assert.Equal(t, LevelError, cfg.logger().Level())

	cfg.Debug = true
	assert.Equal(t, LevelDebug, cfg.logger().Level())

	assert.Equal(t, LevelInfo, DefaultConfig().LogLevel)
	_, err = ParseConfig([]byte("log_level: loud\n"))
	assert.ErrorContains(t, err, "unknown log level")

	cfg = DefaultConfig()
	cfg.LogLevel = Level(-1)
	var ce *ConfigError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Equal(t, "log_level", ce.Field)
}
