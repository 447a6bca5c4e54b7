package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, expiresAt, err := signer.Generate("cache", "file-1/ver-1/doc.pdf", 0)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	fileID, relPath, parsedExp, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "cache", fileID)
	require.Equal(t, "file-1/ver-1/doc.pdf", relPath)
	require.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, _, err := signer.Generate("cache", "file-1/doc.pdf", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expired")
}

func TestSignedURLTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	token, _, err := signer.Generate("cache", "file-1/doc.pdf", 0)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "backup"
	_, _, _, err = signer.Parse(strings.Join(parts, "."))
	require.Error(t, err)
	require.Contains(t, err.Error(), "signature")
}

func TestSignedURLWrongSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret-a", time.Hour).Generate("cache", "file-1/doc.pdf", 0)
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
}

func TestSignedURLRejectsEmptyInputs(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Hour)

	_, _, err := signer.Generate("", "path", 0)
	require.Error(t, err)
	_, _, err = signer.Generate("cache", "", 0)
	require.Error(t, err)

	_, _, _, err = signer.Parse("not.a.token")
	require.Error(t, err)
}
