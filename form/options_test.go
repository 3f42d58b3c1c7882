package form_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	g "github.com/reoring/formskema/dsl"
	"github.com/reoring/formskema/form"
)

func TestParseOptions(t *testing.T) {
	o, err := form.ParseOptions([]byte(`
mode: onBlur
reValidateMode: onChange
criteriaMode: all
validationDebounce: 300ms
delayError: 1s
defaultValues:
  user:
    name: Ada
  tags: [a, b]
`))
	require.NoError(t, err)
	assert.Equal(t, form.OnBlur, o.Mode)
	assert.Equal(t, form.OnChange, o.ReValidateMode)
	assert.Equal(t, form.CriteriaAll, o.CriteriaMode)
	assert.Equal(t, 300*time.Millisecond, o.ValidationDebounce)
	assert.Equal(t, time.Second, o.DelayError)
	assert.Equal(t, map[string]any{
		"user": map[string]any{"name": "Ada"},
		"tags": []any{"a", "b"},
	}, o.DefaultValues)

	empty, err := form.ParseOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, form.Options{}, empty)
}

func TestParseOptions_Errors(t *testing.T) {
	_, err := form.ParseOptions([]byte("mode: onBlur\nmodee: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modee")

	_, err = form.LoadOptions(strings.NewReader("delayError: soon\n"))
	require.Error(t, err)
}

func TestLoadOptionsIntoForm(t *testing.T) {
	o, err := form.LoadOptions(strings.NewReader("mode: sideways\n"))
	require.NoError(t, err)
	_, err = form.New(g.Any(), o)
	require.ErrorIs(t, err, form.ErrInvalidOptions)

	o, err = form.LoadOptions(strings.NewReader("reValidateMode: onTouched\n"))
	require.NoError(t, err)
	_, err = form.New(g.Any(), o)
	require.ErrorIs(t, err, form.ErrInvalidOptions)
}

func TestDefaultsDecoders(t *testing.T) {
	fromJSON, err := form.DefaultsFromJSON([]byte(`{"user":{"age":36},"items":[{"name":"a"}]}`))
	require.NoError(t, err)
	fromYAML, err := form.DefaultsFromYAML([]byte("user:\n  age: 36.0\nitems:\n  - name: a\n"))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)

	f, err := form.New(g.Any(), form.Options{DefaultValues: fromJSON, Logger: form.NewLogger("error", "json", &bytes.Buffer{})})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Fields("items").Len())
	assert.Equal(t, 36.0, f.GetValue("user.age"))

	_, err = form.DefaultsFromJSON([]byte(`[1,2]`))
	require.Error(t, err)
	_, err = form.DefaultsFromYAML([]byte("- 1\n"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := form.NewLogger("debug", "json", &buf)
	log.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	form.NewLogger("warn", "text", &buf).Info("dropped")
	assert.Empty(t, buf.String())
}
