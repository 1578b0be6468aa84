package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
)

type stubFormatRepo struct {
	format *entities.LicenseFormat
	err    error
}

func (s *stubFormatRepo) Get(context.Context) (*entities.LicenseFormat, error) {
	return s.format, s.err
}

func (s *stubFormatRepo) Save(_ context.Context, f *entities.LicenseFormat) error {
	s.format = f
	return nil
}

func TestKeyOptions_CharsetIsAdditive(t *testing.T) {
	assert.Equal(t, lowercaseChars, KeyOptions{}.Charset())
	assert.Equal(t, lowercaseChars+digitChars, KeyOptions{UseDigits: true}.Charset())
	all := KeyOptions{UseUppercase: true, UseDigits: true, UseSpecial: true}.Charset()
	assert.True(t, strings.HasPrefix(all, lowercaseChars))
	assert.Contains(t, all, "Z")
	assert.Contains(t, all, "9")
	assert.Contains(t, all, "!")
}

func TestGenerateKey_LiteralsAndWildcards(t *testing.T) {
	opts := KeyOptions{UseDigits: true}
	charset := opts.Charset()
	template := "VARP-****-**"

	for i := 0; i < 50; i++ {
		key, err := GenerateKey(template, opts)
		require.NoError(t, err)
		require.Len(t, key, len(template))
		for pos, c := range template {
			if c == '*' {
				assert.Contains(t, charset, string(key[pos]))
				continue
			}
			assert.Equal(t, byte(c), key[pos], "literal at %d", pos)
		}
	}
}

func TestGenerateKey_UsesOneByteModuloCharset(t *testing.T) {
	orig := randomBytes
	t.Cleanup(func() { randomBytes = orig })
	randomBytes = func(n int) ([]byte, error) {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(26 + i)
		}
		return buf, nil
	}

	key, err := GenerateKey("**-*", KeyOptions{})
	require.NoError(t, err)
	// 26%26=0 -> a, 27%26=1 -> b, literal '-', 29%26=3 -> d
	assert.Equal(t, "ab-d", key)
}

func TestGenerateKey_EmptyTemplateUsesDefault(t *testing.T) {
	key, err := GenerateKey("", KeyOptions{})
	require.NoError(t, err)
	assert.Len(t, key, len(DefaultKeyTemplate))
	assert.Equal(t, 3, strings.Count(key, "-"))
}

func TestGenerateKey_RandomFailure(t *testing.T) {
	orig := randomBytes
	t.Cleanup(func() { randomBytes = orig })
	randomBytes = func(int) ([]byte, error) { return nil, errors.New("no entropy") }

	_, err := GenerateKey("****", KeyOptions{})
	assert.Error(t, err)
	_, err = GenerateFallbackKey()
	assert.Error(t, err)
}

func TestGenerateFallbackKey(t *testing.T) {
	key, err := GenerateFallbackKey()
	require.NoError(t, err)
	require.Len(t, key, FallbackKeyLength)
	for _, c := range key {
		assert.Contains(t, fallbackAlphabet, string(c))
	}
}

func TestKeyGenerator_Next(t *testing.T) {
	ctx := context.Background()

	stored := &stubFormatRepo{format: &entities.LicenseFormat{Template: "ABC-**"}}
	key, err := NewKeyGenerator(stored, "").Next(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "ABC-"))
	assert.Len(t, key, 6)

	missing := &stubFormatRepo{err: domainerrors.ErrNotFound}
	key, err = NewKeyGenerator(missing, "KF-****").Next(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "KF-"))

	broken := &stubFormatRepo{err: errors.New("db down")}
	key, err = NewKeyGenerator(broken, "KF-****").Next(ctx)
	require.NoError(t, err)
	assert.Len(t, key, FallbackKeyLength)
	assert.NotContains(t, key, "-")
}
