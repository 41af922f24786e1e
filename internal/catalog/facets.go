package catalog

import "github.com/cropchain/yield-exchange/internal/model"

// Facets lists the filter options offered for a catalog. Each list starts
// with All followed by the distinct values in first-appearance order.
type Facets struct {
	CropTypes  []string `json:"cropTypes"`
	RiskLevels []string `json:"riskLevels"`
}

// BuildFacets collects the distinct crop types and risk levels of tokens.
func BuildFacets(tokens []model.Token) Facets {
	f := Facets{
		CropTypes:  []string{All},
		RiskLevels: []string{All},
	}
	seenCrop := make(map[string]bool)
	seenRisk := make(map[model.RiskLevel]bool)

	for _, t := range tokens {
		if !seenCrop[t.CropType] {
			seenCrop[t.CropType] = true
			f.CropTypes = append(f.CropTypes, t.CropType)
		}
		if !seenRisk[t.RiskLevel] {
			seenRisk[t.RiskLevel] = true
			f.RiskLevels = append(f.RiskLevels, string(t.RiskLevel))
		}
	}
	return f
}
