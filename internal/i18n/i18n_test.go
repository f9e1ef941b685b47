package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestManager_TranslateAndFallback(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "en.yaml", `
en:
  menu:
    main: "Main Menu"
  send:
    prompt_amount: "Enter the amount of {asset} to send"
`)
	writeCatalog(t, dir, "zh.yaml", `
zh:
  menu:
    main: "主菜单"
`)

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)

	en := m.Translator("en")
	assert.Equal(t, "Main Menu", en.T("menu.main"))
	assert.Equal(t, "Enter the amount of SOL to send",
		en.T("send.prompt_amount", map[string]string{"asset": "SOL"}))

	zh := m.Translator("zh")
	assert.Equal(t, "主菜单", zh.T("menu.main"))
	// missing key falls back to the default language
	assert.Equal(t, "Enter the amount of {asset} to send", zh.T("send.prompt_amount"))

	// unknown language falls back to default
	unknown := m.Translator("fr")
	assert.Equal(t, "en", unknown.Lang())

	// unknown key passes through
	assert.Equal(t, "no.such.key", en.T("no.such.key"))
}

func TestManager_Reload(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "en.yaml", "en:\n  greeting: \"hello\"\n")

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)
	tr := m.Translator("en")
	require.Equal(t, "hello", tr.T("greeting"))

	writeCatalog(t, dir, "en.yaml", "en:\n  greeting: \"hi there\"\n")
	require.NoError(t, m.Reload())

	// existing translators observe the reloaded catalog
	assert.Equal(t, "hi there", tr.T("greeting"))
}

func TestLoadFromDir_MissingDefault(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "zh.yaml", "zh:\n  greeting: \"你好\"\n")

	_, err := LoadFromDir(dir, "en")
	assert.Error(t, err)
}
