package escalation

import (
	"context"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
)

// FixedLocator serves the reference deployment: a fixed position and the
// three authorities nearest to it, in rank order. A real deployment
// substitutes the platform geolocation service here.
type FixedLocator struct {
	Position Location
}

// Locate implements Locator.
func (l FixedLocator) Locate(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	return l.Position, nil
}

// NearbyAuthorities implements Locator.
func (l FixedLocator) NearbyAuthorities(ctx context.Context, loc Location) ([]models.Authority, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []models.Authority{
		{Name: "Local Police Station", Distance: "1.2 km"},
		{Name: "Traffic Enforcement Unit", Distance: "2.5 km"},
		{Name: "Municipal Towing Service", Distance: "3.1 km"},
	}, nil
}

// LogNotifier acknowledges authority dispatches in the log. The real
// dispatch channel is outside this core.
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

// NotifyAuthority implements Notifier.
func (n LogNotifier) NotifyAuthority(ctx context.Context, authority models.Authority, plate string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.Logger.Infow("Authority dispatch",
		"authority", authority.Name,
		"distance", authority.Distance,
		"plate", plate,
	)
	return nil
}
