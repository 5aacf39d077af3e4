package servicectx

// Strategy names understood by the page handlers.
const (
	StrategyCatalog  = "catalog"
	StrategyCMS      = "cms"
	StrategyBookings = "bookings"
	StrategyHandoff  = "handoff"
)

// CatalogStrategy maps store/pricing catalog items. Missing deposits are
// derived from the price using depositRatio.
func CatalogStrategy(depositRatio float64) Strategy {
	return Strategy{
		Name: StrategyCatalog,
		Fields: Candidates{
			ID:         []string{"_id", "serviceId", "slug"},
			Name:       []string{"title", "name", "serviceName"},
			Price:      []string{"price", "basePrice", "pricing.price"},
			Duration:   []string{"duration", "durationInMinutes"},
			Deposit:    []string{"deposit", "depositAmount"},
			DepositSKU: []string{"depositProductId", "depositSku"},
			FullSKU:    []string{"fullPaymentProductId", "fullPaymentSku"},
		},
		DefaultDepositRatio: depositRatio,
	}
}

// CMSStrategy maps CMS service items that link to a booking service.
func CMSStrategy() Strategy {
	return Strategy{
		Name: StrategyCMS,
		Fields: Candidates{
			ID:       []string{"bookingServiceId"},
			Name:     []string{"name"},
			Price:    []string{"price"},
			Duration: []string{"durationMinutes"},
			Category: []string{"category.title"},
		},
	}
}

// BookingsStrategy maps booking-app service items, whose field shapes vary by site.
func BookingsStrategy() Strategy {
	return Strategy{
		Name: StrategyBookings,
		Fields: Candidates{
			ID:       []string{"_id", "id", "serviceId", "bookingServiceId"},
			Name:     []string{"name", "title", "serviceName"},
			Price:    []string{"price", "pricing.price", "priceAmount", "price.amount"},
			Duration: []string{"duration", "sessionLength", "durationMinutes", "duration.minutes"},
			Category: []string{"category", "categories.0.name", "categoryName"},
		},
		DefaultName: "Service",
	}
}

// HandoffStrategy maps page-transition parameters back into a service.
func HandoffStrategy() Strategy {
	return Strategy{
		Name: StrategyHandoff,
		Fields: Candidates{
			ID:       []string{"serviceId"},
			Name:     []string{"service"},
			Price:    []string{"price"},
			Duration: []string{"duration"},
			Deposit:  []string{"deposit"},
		},
	}
}

// DefaultRegistry registers every built-in strategy.
func DefaultRegistry(depositRatio float64) *Registry {
	return NewRegistry(
		CatalogStrategy(depositRatio),
		CMSStrategy(),
		BookingsStrategy(),
		HandoffStrategy(),
	)
}
