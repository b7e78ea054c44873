// Package i18n localizes user-facing API messages. Matching follows BCP 47
// semantics so "id-ID" or "en-GB" resolve to the supported bases.
package i18n

import (
	"golang.org/x/text/language"

	"swiftapply/internal/domain"
)

var supported = []language.Tag{
	language.English,
	language.Indonesian,
}

var matcher = language.NewMatcher(supported)

// Match resolves an arbitrary locale string to a supported language.
// Unknown or empty input falls back to English.
func Match(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, _ := matcher.Match(tag)
	return supported[idx]
}

// QuotaExceededMessage explains an exhausted daily allowance in the
// caller's language, with a next step appropriate to their plan.
func QuotaExceededMessage(locale string, plan domain.Plan) string {
	tag := Match(locale)
	switch plan {
	case domain.PlanGuest:
		if tag == language.Indonesian {
			return "Batas harian gratis tercapai. Daftar akun untuk mendapatkan kuota lebih besar."
		}
		return "Daily free limit reached. Sign up for a larger daily quota."
	case domain.PlanFree:
		if tag == language.Indonesian {
			return "Batas harian tercapai. Tingkatkan ke paket Pro untuk penggunaan tanpa batas."
		}
		return "Daily limit reached. Upgrade to Pro for unlimited usage."
	}
	if tag == language.Indonesian {
		return "Batas harian tercapai. Coba lagi besok."
	}
	return "Daily limit reached. Try again tomorrow."
}
