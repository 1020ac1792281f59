package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
)

func TestDefaultProcessorConfigIsValid(t *testing.T) {
	cfg := DefaultProcessorConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateDPIRange(t *testing.T) {
	for _, dpi := range []int{71, 0, -10, 1201, 9600} {
		cfg := DefaultProcessorConfig()
		cfg.PDF.DPI = dpi

		err := cfg.Validate()
		require.Error(t, err, "dpi %d", dpi)
		assert.True(t, pipelineerrors.IsConfigError(err))
	}

	for _, dpi := range []int{72, 300, 1200} {
		cfg := DefaultProcessorConfig()
		cfg.PDF.DPI = dpi
		assert.NoError(t, cfg.Validate(), "dpi %d", dpi)
	}
}

func TestValidateRequiresLanguages(t *testing.T) {
	cfg := DefaultProcessorConfig()
	cfg.PDF.Language = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))

	cfg = DefaultProcessorConfig()
	cfg.Image.OCRLanguage = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))
}

func TestValidateStepVocabulary(t *testing.T) {
	cfg := DefaultProcessorConfig()
	cfg.Image.PreprocessingSteps = []string{StepDenoise, "sharpen"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))
}

func TestParseProcessorConfigMissingSection(t *testing.T) {
	raw := []byte(`{"pdf": {"language": "eng", "dpi": 300}, "image": {"ocr_language": "eng"}}`)

	_, err := ParseProcessorConfig(raw)
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))
	assert.Contains(t, err.Error(), "structured")
}

func TestParseProcessorConfigOverridesDefaults(t *testing.T) {
	raw := []byte(`{
		"pdf": {"language": "deu", "dpi": 150, "ocr_enabled": false},
		"image": {"ocr_language": "deu", "preprocessing_steps": ["contrast"]},
		"structured": {"schema_validation": false}
	}`)

	cfg, err := ParseProcessorConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, "deu", cfg.PDF.Language)
	assert.Equal(t, 150, cfg.PDF.DPI)
	assert.False(t, cfg.PDF.OCREnabled)
	assert.Equal(t, []string{"contrast"}, cfg.Image.PreprocessingSteps)
	assert.False(t, cfg.Structured.SchemaValidation)
}

func TestParseProcessorConfigRejectsBadDPI(t *testing.T) {
	raw := []byte(`{
		"pdf": {"language": "eng", "dpi": 30},
		"image": {"ocr_language": "eng"},
		"structured": {"schema_validation": true}
	}`)

	_, err := ParseProcessorConfig(raw)
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))
}

func TestParseProcessorConfigInvalidJSON(t *testing.T) {
	_, err := ParseProcessorConfig([]byte(`{broken`))
	require.Error(t, err)
	assert.True(t, pipelineerrors.IsConfigError(err))
}
