package usecases

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/internal/domain/repositories"
	"keyforge.backend/pkg/crypto"
	"keyforge.backend/pkg/logger"
)

var randomBytes = crypto.RandomBytes

// KeyOptions toggles the character classes added to the lowercase base set
type KeyOptions struct {
	UseUppercase bool
	UseDigits    bool
	UseSpecial   bool
}

// Charset returns the characters a wildcard position may take.
func (o KeyOptions) Charset() string {
	var b strings.Builder
	b.WriteString(lowercaseChars)
	if o.UseUppercase {
		b.WriteString(uppercaseChars)
	}
	if o.UseDigits {
		b.WriteString(digitChars)
	}
	if o.UseSpecial {
		b.WriteString(specialChars)
	}
	return b.String()
}

// GenerateKey fills every '*' of template with a random character from the
// charset of opts and copies every other character verbatim. One random
// byte is consumed per template position.
func GenerateKey(template string, opts KeyOptions) (string, error) {
	if template == "" {
		template = DefaultKeyTemplate
	}
	charset := []rune(opts.Charset())
	if len(charset) == 0 {
		charset = []rune(fallbackAlphabet)
	}

	positions := []rune(template)
	buf, err := randomBytes(len(positions))
	if err != nil {
		return "", err
	}

	out := make([]rune, len(positions))
	for i, c := range positions {
		if c == keyWildcard {
			out[i] = charset[int(buf[i])%len(charset)]
			continue
		}
		out[i] = c
	}
	return string(out), nil
}

// GenerateFallbackKey returns a fixed-length alphanumeric key, used when the
// format configuration cannot be loaded.
func GenerateFallbackKey() (string, error) {
	buf, err := randomBytes(FallbackKeyLength)
	if err != nil {
		return "", err
	}
	out := make([]byte, FallbackKeyLength)
	for i, b := range buf {
		out[i] = fallbackAlphabet[int(b)%len(fallbackAlphabet)]
	}
	return string(out), nil
}

// KeyGenerator produces keys from the stored license format
type KeyGenerator struct {
	formatRepo      repositories.LicenseFormatRepository
	defaultTemplate string
}

// NewKeyGenerator creates a generator. defaultTemplate is used until a
// format row has been saved.
func NewKeyGenerator(formatRepo repositories.LicenseFormatRepository, defaultTemplate string) *KeyGenerator {
	if defaultTemplate == "" {
		defaultTemplate = DefaultKeyTemplate
	}
	return &KeyGenerator{formatRepo: formatRepo, defaultTemplate: defaultTemplate}
}

// DefaultFormat is the format in effect before an admin saves one.
func (g *KeyGenerator) DefaultFormat() *entities.LicenseFormat {
	return &entities.LicenseFormat{
		Template:     g.defaultTemplate,
		UseUppercase: true,
		UseDigits:    true,
	}
}

// Format loads the stored format, or the default when none was saved.
func (g *KeyGenerator) Format(ctx context.Context) (*entities.LicenseFormat, error) {
	format, err := g.formatRepo.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return g.DefaultFormat(), nil
		}
		return nil, err
	}
	return format, nil
}

// Next generates one key. Failure to load the format switches to the
// fixed-length fallback generator instead of failing the caller.
func (g *KeyGenerator) Next(ctx context.Context) (string, error) {
	format, err := g.Format(ctx)
	if err != nil {
		logger.Warn(ctx, "license format unavailable, using fallback key generator", zap.Error(err))
		return GenerateFallbackKey()
	}
	return GenerateKey(format.Template, KeyOptions{
		UseUppercase: format.UseUppercase,
		UseDigits:    format.UseDigits,
		UseSpecial:   format.UseSpecial,
	})
}
