package form

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"time"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Mode selects which events trigger automatic validation.
type Mode string

const (
	// OnSubmit validates only through Trigger and HandleSubmit.
	OnSubmit Mode = "onSubmit"
	// OnChange validates on every value change, including array operations.
	OnChange Mode = "onChange"
	// OnBlur validates when a field reports a blur.
	OnBlur Mode = "onBlur"
	// OnTouched validates on the first blur and on every change after it.
	OnTouched Mode = "onTouched"
	// All validates on both change and blur.
	All Mode = "all"
)

// CriteriaMode controls how many failures are collected per field.
type CriteriaMode string

const (
	CriteriaFirstError CriteriaMode = "firstError"
	CriteriaAll        CriteriaMode = "all"
)

// Options configures a Form. The yaml tags allow loading everything except
// the runtime hooks from a file with LoadOptions.
type Options struct {
	DefaultValues  map[string]any `yaml:"defaultValues"`
	Mode           Mode           `yaml:"mode"`
	ReValidateMode Mode           `yaml:"reValidateMode"`
	CriteriaMode   CriteriaMode   `yaml:"criteriaMode"`
	// ValidationDebounce coalesces validation requests for the same field
	// that arrive within the window into one schema run.
	ValidationDebounce time.Duration `yaml:"validationDebounce"`
	// DelayError postpones showing a new error. A passing result arriving
	// in the meantime cancels it.
	DelayError time.Duration `yaml:"delayError"`

	Logger *slog.Logger `yaml:"-"`
	// Focus receives focus requests produced by field-array operations.
	Focus func(path string) `yaml:"-"`
}

func (o Options) withDefaults() (Options, error) {
	if o.Mode == "" {
		o.Mode = OnSubmit
	}
	if o.ReValidateMode == "" {
		o.ReValidateMode = OnChange
	}
	if o.CriteriaMode == "" {
		o.CriteriaMode = CriteriaFirstError
	}
	switch o.Mode {
	case OnSubmit, OnChange, OnBlur, OnTouched, All:
	default:
		return o, fmt.Errorf("%w: mode %q", ErrInvalidOptions, o.Mode)
	}
	switch o.ReValidateMode {
	case OnSubmit, OnChange, OnBlur:
	default:
		return o, fmt.Errorf("%w: reValidateMode %q", ErrInvalidOptions, o.ReValidateMode)
	}
	switch o.CriteriaMode {
	case CriteriaFirstError, CriteriaAll:
	default:
		return o, fmt.Errorf("%w: criteriaMode %q", ErrInvalidOptions, o.CriteriaMode)
	}
	if o.ValidationDebounce < 0 || o.DelayError < 0 {
		return o, fmt.Errorf("%w: negative duration", ErrInvalidOptions)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// ParseOptions decodes YAML options. Durations are written as Go duration
// strings ("300ms").
func ParseOptions(data []byte) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && err != io.EOF {
		return Options{}, fmt.Errorf("form: parse options: %w", err)
	}
	return o, nil
}

// LoadOptions reads and decodes YAML options from r.
func LoadOptions(r io.Reader) (Options, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Options{}, fmt.Errorf("form: read options: %w", err)
	}
	return ParseOptions(data)
}

// DefaultsFromJSON decodes a JSON object into default values.
func DefaultsFromJSON(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("form: decode json defaults: %w", err)
	}
	return m, nil
}

// DefaultsFromYAML decodes a YAML mapping into default values.
func DefaultsFromYAML(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("form: decode yaml defaults: %w", err)
	}
	return m, nil
}

// NewLogger builds an isolated logger. level is one of debug, info, warn,
// error (default info); format "json" selects the JSON handler, anything
// else the text handler.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
