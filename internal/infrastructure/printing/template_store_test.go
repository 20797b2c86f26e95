package printing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_Embedded(t *testing.T) {
	store, err := NewTemplateStore("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DAMDFETemplate}, store.Names())
	assert.False(t, store.LoadedAt().IsZero())

	var buf bytes.Buffer
	err = store.Execute(&buf, "missing.html", nil)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeTemplateMissing, renderErr.Code)
}

func TestTemplateStore_MissingDirFallsBack(t *testing.T) {
	store, err := NewTemplateStore(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DAMDFETemplate}, store.Names())
}

func TestTemplateStore_OverrideAndNested(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "damdfe.html"), []byte(`custom {{.Number}}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "partials"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partials", "footer.html"), []byte(`footer`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644))

	store, err := NewTemplateStore(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"damdfe.html", "partials/footer.html"}, store.Names())

	var buf bytes.Buffer
	require.NoError(t, store.Execute(&buf, DAMDFETemplate, DAMDFE{Number: 42}))
	assert.Equal(t, "custom 42", buf.String())
}

func TestTemplateStore_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "damdfe.html")
	require.NoError(t, os.WriteFile(file, []byte(`v1`), 0o644))

	store, err := NewTemplateStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`{{if}}`), 0o644))
	assert.Error(t, store.Reload())

	var buf bytes.Buffer
	require.NoError(t, store.Execute(&buf, DAMDFETemplate, nil))
	assert.Equal(t, "v1", buf.String())

	require.NoError(t, os.WriteFile(file, []byte(`v2`), 0o644))
	require.NoError(t, store.Reload())
	buf.Reset()
	require.NoError(t, store.Execute(&buf, DAMDFETemplate, nil))
	assert.Equal(t, "v2", buf.String())
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "R$ 1.234,50", formatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "R$ 0,00", formatMoney(decimal.Zero))
	assert.Equal(t, "R$ 1.000.000,00", formatMoney(decimal.NewFromInt(1000000)))
	assert.Equal(t, "R$ -12,30", formatMoney(decimal.RequireFromString("-12.3")))
	assert.Equal(t, "999,1230", formatWeight(decimal.RequireFromString("999.123")))

	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "02/01/2024 12:04:05", formatDateTime(ts))
	assert.Equal(t, "02/01/2024", formatDate(&ts))
	var nilTime *time.Time
	assert.Empty(t, formatDateTime(nilTime))
	assert.Empty(t, formatDate("not a time"))
}
