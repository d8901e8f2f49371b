package waste

import "ecos/internal/domain"

type CreateRequest struct {
	AbbreviatedName string `json:"abbreviated_name" validate:"required,max=16"`
}

type TranslationRequest struct {
	LanguageCode domain.LanguageCode `json:"language_code" validate:"required,oneof=ru en kk"`
	Name         string              `json:"name" validate:"required,max=255"`
	Description  string              `json:"description" validate:"max=2000"`
}

// TranslationUpdateRequest changes only the fields that are present.
type TranslationUpdateRequest struct {
	LanguageCode *domain.LanguageCode `json:"language_code" validate:"omitempty,oneof=ru en kk"`
	Name         *string              `json:"name" validate:"omitempty,min=1,max=255"`
	Description  *string              `json:"description" validate:"omitempty,max=2000"`
}
