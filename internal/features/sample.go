package features

// Sample pairs one year's NDVI maximum with its observed yield. Samples are
// derived per response and never persisted.
type Sample struct {
	Year       int     `json:"year"`
	NDVIMax    float64 `json:"ndvi_max"`
	Productive float64 `json:"productive"`
}
