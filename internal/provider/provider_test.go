package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatobox/invoice-ocr/internal/common"
)

func TestPrompt(t *testing.T) {
	assert.Equal(t, DefaultPrompt, Prompt(""))
	assert.Equal(t, DefaultPrompt, Prompt("   "))
	assert.Equal(t, "read it", Prompt(" read it "))
	assert.Contains(t, DefaultPrompt, `"line_items"`)
	assert.Contains(t, DefaultPrompt, `"metadata"`)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("gemini without key is not configured", func(t *testing.T) {
		p, err := New(ctx, common.OCRConfig{Provider: "gemini"}, nil)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("vertex without project is not configured", func(t *testing.T) {
		p, err := New(ctx, common.OCRConfig{Provider: "vertex"}, nil)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("tesseract needs no credentials", func(t *testing.T) {
		p, err := New(ctx, common.OCRConfig{Provider: "tesseract", TesseractLang: "spa"}, nil)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.NoError(t, p.Close())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, common.OCRConfig{Provider: "openai"}, nil)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})
}
