package service

import (
	"context"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
)

// RateSource is the remote provider of rates and currency codes
type RateSource interface {
	// FetchLatestRates retrieves the latest rates against base
	FetchLatestRates(ctx context.Context, base string) (*entity.RateTable, error)

	// FetchCurrencyCodes retrieves the supported currency catalog
	FetchCurrencyCodes(ctx context.Context) (entity.CurrencyCatalog, error)
}
