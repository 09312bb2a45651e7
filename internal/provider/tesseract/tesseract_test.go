package tesseract

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	name    string
	args    []string
	content []byte
	stdout  string
	stderr  string
	err     error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	for _, a := range args {
		if b, err := os.ReadFile(a); err == nil {
			s.content = b
			break
		}
	}
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func TestGenerateContent_Image(t *testing.T) {
	stub := &stubRunner{stdout: "FACTURA\t001\r\n\r\n\r\n\r\nTotal:   11.50  \n-----\n"}
	p := New(Config{Lang: "spa", TessdataDir: "/tess"}, nil).WithRunner(stub)

	text, err := p.GenerateContent(context.Background(), "ignored", []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "FACTURA 001\n\nTotal: 11.50", text)
	assert.Equal(t, "tesseract", stub.name)
	assert.Equal(t, "stdout", stub.args[1])
	assert.Contains(t, stub.args, "spa")
	assert.Contains(t, stub.args, "/tess")
	assert.Regexp(t, `\.png$`, stub.args[0])
	assert.Equal(t, []byte("png-bytes"), stub.content)

	_, statErr := os.Stat(stub.args[0])
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestGenerateContent_PDF(t *testing.T) {
	stub := &stubRunner{stdout: "page one\fpage two"}
	p := New(Config{}, nil).WithRunner(stub)

	text, err := p.GenerateContent(context.Background(), "", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "pdftotext", stub.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, stub.args[:5])
	assert.Equal(t, "page one\npage two", text)
}

func TestGenerateContent_RunnerError(t *testing.T) {
	stub := &stubRunner{stderr: "Error opening data file", err: errors.New("exit status 1")}
	p := New(Config{}, nil).WithRunner(stub)

	_, err := p.GenerateContent(context.Background(), "", []byte("x"), "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"empty", "", ""},
		{"crlf and tabs", "a\tb\r\nc", "a b\nc"},
		{"blank runs collapse", "a\n\n\n\nb", "a\n\nb"},
		{"space-only lines collapse", "a\n  \n \n\nb", "a\n\nb"},
		{"trailing spaces trimmed", "a   \nb  ", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.in))
		})
	}
}
