package router

import (
	"log/slog"

	"github.com/motorlot/marketplace-api/internal/promotions"
)

// seedDevelopmentPackages gives a fresh development server something to
// feature listings with.
func (a *api) seedDevelopmentPackages() {
	if len(a.promotions.List(true)) > 0 {
		return
	}

	seeds := []promotions.CreatePackageInput{
		{Name: "Weekend Spotlight", FeatureDurationDays: 3, PriceCents: 900},
		{Name: "Week on Top", FeatureDurationDays: 7, PriceCents: 1900},
		{Name: "Showroom Month", FeatureDurationDays: 30, PriceCents: 5900},
	}
	for _, seed := range seeds {
		if _, err := a.promotions.Create(seed); err != nil {
			a.logger.Warn("seed promotion package", slog.String("name", seed.Name), slog.Any("error", err))
		}
	}
}
