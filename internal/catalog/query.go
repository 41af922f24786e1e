// Package catalog implements the marketplace query engine: filtering,
// free-text search and stable sorting of token offerings.
//
// Everything here is pure. Callers own the token slice and the query;
// Apply never mutates either.
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cropchain/yield-exchange/internal/model"
)

// All disables a categorical filter.
const All = "all"

// SortKey selects the field offerings are ordered by.
type SortKey string

const (
	SortPrice SortKey = "price"
	SortYield SortKey = "yield"
	SortDate  SortKey = "date"
	SortRisk  SortKey = "risk"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

var (
	ErrInvalidSortKey   = errors.New("catalog: unsupported sort key")
	ErrInvalidSortOrder = errors.New("catalog: unsupported sort order")
)

// Query is the client-held view of the catalog.
type Query struct {
	Search    string    `json:"search"`
	CropType  string    `json:"cropType"`
	RiskLevel string    `json:"riskLevel"`
	SortBy    SortKey   `json:"sortBy"`
	Order     SortOrder `json:"sortOrder"`
}

// DefaultQuery returns the neutral query: no filters, harvest date ascending.
func DefaultQuery() Query {
	return Query{
		CropType:  All,
		RiskLevel: All,
		SortBy:    SortDate,
		Order:     Asc,
	}
}

// ParseSortKey validates a user-supplied sort key. Empty means date.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortDate, nil
	case SortPrice, SortYield, SortDate, SortRisk:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q (expected price, yield, date or risk)", ErrInvalidSortKey, s)
}

// ParseSortOrder validates a user-supplied sort direction. Empty means asc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Asc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q (expected asc or desc)", ErrInvalidSortOrder, s)
}

// normalize maps zero and unknown values onto the neutral defaults.
func (q Query) normalize() Query {
	if q.CropType == "" {
		q.CropType = All
	}
	if q.RiskLevel == "" {
		q.RiskLevel = All
	}
	switch q.SortBy {
	case SortPrice, SortYield, SortDate, SortRisk:
	default:
		q.SortBy = SortDate
	}
	if q.Order != Desc {
		q.Order = Asc
	}
	return q
}

// Apply returns the offerings matching q, ordered by q's sort key.
//
// Filters run in a fixed order: crop type, risk level, then text search.
// The sort is stable; a descending order negates the comparator rather
// than reversing the result, so equal keys keep their input order.
func Apply(tokens []model.Token, q Query) []model.Token {
	q = q.normalize()
	search := strings.ToLower(q.Search)

	result := make([]model.Token, 0, len(tokens))
	for _, t := range tokens {
		if q.CropType != All && t.CropType != q.CropType {
			continue
		}
		if q.RiskLevel != All && string(t.RiskLevel) != q.RiskLevel {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		result = append(result, t)
	}

	slices.SortStableFunc(result, func(a, b model.Token) int {
		return compare(a, b, q.SortBy, q.Order)
	})
	return result
}

// matchesSearch expects needle to be lower-cased already.
func matchesSearch(t model.Token, needle string) bool {
	return strings.Contains(strings.ToLower(t.Name), needle) ||
		strings.Contains(strings.ToLower(t.Symbol), needle) ||
		strings.Contains(strings.ToLower(t.Location), needle)
}

func compare(a, b model.Token, key SortKey, order SortOrder) int {
	if key == SortRisk {
		// Unranked levels trail the known ones in either direction.
		ra, rb := a.RiskLevel.Rank(), b.RiskLevel.Rank()
		switch {
		case ra == 0 && rb == 0:
			return 0
		case ra == 0:
			return 1
		case rb == 0:
			return -1
		}
	}

	var c int
	switch key {
	case SortPrice:
		c = a.Price.Cmp(b.Price)
	case SortYield:
		c = cmp.Compare(a.ProjectedYield, b.ProjectedYield)
	case SortRisk:
		c = cmp.Compare(a.RiskLevel.Rank(), b.RiskLevel.Rank())
	default:
		// Malformed dates parse to the zero time, the minimal value.
		ta, _ := a.Harvest()
		tb, _ := b.Harvest()
		c = ta.Compare(tb)
	}

	if order == Desc {
		return -c
	}
	return c
}
