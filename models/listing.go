package models

// RawListing is the unstructured field bag a site adapter extracts for one
// vehicle. Pointer fields distinguish "absent" from zero so reconciliation
// can preserve existing values a particular site never publishes.
type RawListing struct {
	VIN          string
	Year         *int
	Make         *string
	Model        *string
	Mileage      *int
	Price        *float64
	Condition    *string
	FuelType     *string
	Transmission *string
	StockNumber  *string
	URL          string
	Photos       []string
}
