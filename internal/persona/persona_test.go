package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	require.NoError(t, p.Validate())
	assert.Equal(t, "0555614852", p.ContactPhone)
	assert.Contains(t, p.SystemInstruction, "نورة")
	assert.Contains(t, p.SeedGreeting, "مكتب الوطن")
	assert.Contains(t, p.Fallback.RemoteError, p.ContactPhone)
	assert.True(t, strings.HasSuffix(p.SpeechStyle, ": "), "speech style should end with a separator before the text")
	assert.Equal(t, "1234567890", p.DefaultNationalID)
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Farewell = "changed"

	assert.NotEqual(t, "changed", Default().Farewell)
}

func TestGreeting(t *testing.T) {
	p := Default()

	greeting := p.Greeting("  سارة ")

	assert.Contains(t, greeting, "يا سارة")
	assert.NotContains(t, greeting, namePlaceholder)
}

func TestDefaultName(t *testing.T) {
	p := Default()

	assert.Equal(t, "مراجع الوطن العزيز", p.DefaultName("reviewer"))
	assert.NotEmpty(t, p.DefaultName("manager"))
	assert.Equal(t, p.DefaultName("reviewer"), p.DefaultName("unknown"))
}

func TestLoad_EmptyPath(t *testing.T) {
	p, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default().Welcome, p.Welcome)
}

func TestLoad_OverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("farewell: bye\nlogin_greeting: hi {name}\n"), 0o600))

	p, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "bye", p.Farewell)
	assert.Equal(t, "hi Noura", p.Greeting("Noura"))
	assert.Equal(t, Default().SeedGreeting, p.SeedGreeting)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestLoad_InvalidGreeting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("login_greeting: hello there\n"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), namePlaceholder)
}

func TestParse_MissingFields(t *testing.T) {
	_, err := Parse([]byte("name: test\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "farewell")
	assert.Contains(t, err.Error(), "system_instruction")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))

	assert.Error(t, err)
}
