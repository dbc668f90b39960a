package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jmylchreest/presentd/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTime     SortField = "time"
	SortByWindow   SortField = "window"
	SortByToken    SortField = "token"
	SortByLifespan SortField = "lifespan"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// DefaultSortOptions returns default sort options (oldest first, the order
// the journal is written in).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTime,
		Order: SortAsc,
	}
}

// Sort sorts entries in place. Ties keep their journal order.
func Sort(changes []model.StateChange, opts SortOptions) {
	if len(changes) == 0 {
		return
	}

	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		var less, equal bool

		switch opts.Field {
		case SortByWindow:
			wa, wb := strings.ToLower(a.WindowID), strings.ToLower(b.WindowID)
			less, equal = wa < wb, wa == wb
		case SortByToken:
			less, equal = a.Token < b.Token, a.Token == b.Token
		case SortByLifespan:
			less, equal = a.Lifespan < b.Lifespan, a.Lifespan == b.Lifespan
		default:
			less, equal = a.At.Before(b.At), a.At.Equal(b.At)
		}

		if opts.Order == SortDesc {
			return !less && !equal
		}
		return less
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "at", "timestamp", "":
		return SortByTime, nil
	case "window", "w":
		return SortByWindow, nil
	case "token", "t":
		return SortByToken, nil
	case "lifespan", "l":
		return SortByLifespan, nil
	default:
		return SortByTime, fmt.Errorf("invalid sort field: %s (use time, window, token or lifespan)", s)
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a", "":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return SortAsc, fmt.Errorf("invalid sort order: %s (use asc or desc)", s)
	}
}
