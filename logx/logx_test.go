package logx

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("LEDGER", "committed ", 42)
	Warn("STORE", "slow write")

	out := buf.String()
	assert.Contains(t, out, "[INFO][LEDGER]")
	assert.Contains(t, out, "committed 42")
	assert.Contains(t, out, "[WARN][STORE]")
}

func TestEnvInt(t *testing.T) {
	t.Setenv("LOGX_TEST_INT", "")
	assert.Equal(t, 5, envInt("LOGX_TEST_INT", 5))
	t.Setenv("LOGX_TEST_INT", "12")
	assert.Equal(t, 12, envInt("LOGX_TEST_INT", 5))
	t.Setenv("LOGX_TEST_INT", "abc")
	assert.Equal(t, 5, envInt("LOGX_TEST_INT", 5))
}
