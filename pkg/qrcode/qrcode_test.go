package qrcode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/qrcode"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func TestGenerate(t *testing.T) {
	t.Parallel()

	png, err := qrcode.Generate("https://nowpayments.io/payment/?iid=inv-123", 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngHeader))
}

func TestGenerate_DefaultSize(t *testing.T) {
	t.Parallel()

	png, err := qrcode.Generate("https://example.com", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestGenerate_EmptyContent(t *testing.T) {
	t.Parallel()

	_, err := qrcode.Generate("   ", 256)
	assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
}
