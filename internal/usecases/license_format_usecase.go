package usecases

import (
	"context"
	"strings"
	"time"

	"keyforge.backend/internal/domain/entities"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/domain/repositories"
)

// LicenseFormatUsecase reads and replaces the key template
type LicenseFormatUsecase struct {
	formatRepo repositories.LicenseFormatRepository
	keygen     *KeyGenerator
}

// NewLicenseFormatUsecase creates a new license format usecase
func NewLicenseFormatUsecase(formatRepo repositories.LicenseFormatRepository, keygen *KeyGenerator) *LicenseFormatUsecase {
	return &LicenseFormatUsecase{formatRepo: formatRepo, keygen: keygen}
}

// Get returns the format in effect.
func (u *LicenseFormatUsecase) Get(ctx context.Context) (*entities.LicenseFormat, error) {
	return u.keygen.Format(ctx)
}

// Update replaces the format. Admin only. The template needs at least one
// wildcard so that generated keys differ.
func (u *LicenseFormatUsecase) Update(ctx context.Context, p entities.Principal, input *entities.UpdateLicenseFormatInput) (*entities.LicenseFormat, error) {
	if !p.IsAdmin() {
		return nil, domainerrors.Forbidden("admin only")
	}
	template := strings.TrimSpace(input.Template)
	if !strings.ContainsRune(template, keyWildcard) {
		return nil, domainerrors.BadRequest("template must contain at least one '*'")
	}

	format := &entities.LicenseFormat{
		Template:     template,
		UseUppercase: input.UseUppercase,
		UseDigits:    input.UseDigits,
		UseSpecial:   input.UseSpecial,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := u.formatRepo.Save(ctx, format); err != nil {
		return nil, err
	}
	return format, nil
}

// Preview renders sample keys for a format without storing it.
func (u *LicenseFormatUsecase) Preview(input *entities.UpdateLicenseFormatInput, count int) ([]string, error) {
	if count < 1 || count > 10 {
		count = 5
	}
	template := strings.TrimSpace(input.Template)
	if !strings.ContainsRune(template, keyWildcard) {
		return nil, domainerrors.BadRequest("template must contain at least one '*'")
	}
	opts := KeyOptions{UseUppercase: input.UseUppercase, UseDigits: input.UseDigits, UseSpecial: input.UseSpecial}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key, err := GenerateKey(template, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}
