// Package core provides filtering, sorting, and lookup logic for the
// presentation journal.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Field name: window, interface, client, token, lifespan, from, to, at
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	// Cached parsed values
	regex  *regexp.Regexp
	intVal int64
	atOp   time.Time
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies criteria for filtering journal entries.
type FilterOptions struct {
	Since    time.Duration // Entries newer than now-since (0=all)
	WindowID string        // Exact match on window id
	Token    *model.Token  // Only this token (nil=any)
	State    *model.State  // Entries that moved into this state (nil=any)
	Limit    int           // Maximum results, keeping the newest (0=unlimited)
}

// Filter filters journal entries based on the provided options. Entries are
// expected oldest first; the limit keeps the most recent ones.
func Filter(changes []model.StateChange, opts FilterOptions) []model.StateChange {
	now := time.Now()
	result := make([]model.StateChange, 0, len(changes))

	for _, c := range changes {
		if opts.Since > 0 && c.At.Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.WindowID != "" && c.WindowID != opts.WindowID {
			continue
		}
		if opts.Token != nil && c.Token != *opts.Token {
			continue
		}
		if opts.State != nil && c.To != *opts.State {
			continue
		}
		result = append(result, c)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[len(result)-opts.Limit:]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseToken parses a token as printed by the daemon.
func ParseToken(s string) (model.Token, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token: %s", s)
	}
	return model.Token(v), nil
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Supported fields: window, interface, client, token, lifespan, from, to, at
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), >, <, >=, <=
//
// Examples:
//   - "window=main" - entries of the main window
//   - "to=none" - dismissals
//   - "lifespan>=long" - long and permanent presentations
//   - "interface~=^Alexa\\." - interface matches a regex
//   - "at>1h" - entries from the last hour
func ParseFilter(expr string) (*FilterExpr, error) {
	if expr == "" {
		return &FilterExpr{}, nil
	}

	filter := &FilterExpr{
		Conditions: make([]FilterCondition, 0),
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "window=main" or "to!=none"
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}

			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}
			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init pre-parses and validates the condition value.
func (c *FilterCondition) init() error {
	switch c.Field {
	case "window", "window_id", "w":
		c.Field = "window"
	case "interface", "iface", "i":
		c.Field = "interface"
	case "client", "client_id":
		c.Field = "client"
	case "token", "t":
		c.Field = "token"
		tok, err := ParseToken(c.Value)
		if err != nil {
			return err
		}
		c.intVal = int64(tok)
	case "lifespan", "l":
		c.Field = "lifespan"
		l, err := model.ParseLifespan(c.Value)
		if err != nil {
			return err
		}
		c.intVal = int64(l)
	case "from", "to", "state":
		if c.Field == "state" {
			c.Field = "to"
		}
		st, err := model.ParseState(c.Value)
		if err != nil {
			return err
		}
		c.intVal = int64(st)
	case "at", "time", "timestamp":
		c.Field = "at"
		dur, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid time value: %w", err)
		}
		c.atOp = time.Now().Add(-dur)
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

// Match tests if an entry matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(c model.StateChange) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(c) {
			return false
		}
	}
	return true
}

// Match tests if an entry matches this single condition.
func (c *FilterCondition) Match(sc model.StateChange) bool {
	switch c.Field {
	case "window":
		return c.matchString(sc.WindowID)
	case "interface":
		return c.matchString(sc.InterfaceName)
	case "client":
		return c.matchString(sc.ClientID)
	case "token":
		return c.matchInt(int64(sc.Token))
	case "lifespan":
		return c.matchInt(int64(sc.Lifespan))
	case "from":
		return c.matchInt(int64(sc.From))
	case "to":
		return c.matchInt(int64(sc.To))
	case "at":
		return c.matchTime(sc.At)
	default:
		return false
	}
}

func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.Value
	case FilterOpNotEqual:
		return fieldValue != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

// matchInt compares enumerations and tokens numerically. Lifespans and
// states order by their declaration.
func (c *FilterCondition) matchInt(fieldValue int64) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.intVal
	case FilterOpNotEqual:
		return fieldValue != c.intVal
	case FilterOpGreater:
		return fieldValue > c.intVal
	case FilterOpLess:
		return fieldValue < c.intVal
	case FilterOpGreaterEq:
		return fieldValue >= c.intVal
	case FilterOpLessEq:
		return fieldValue <= c.intVal
	default:
		return false
	}
}

// matchTime compares against now minus the parsed duration, so "at>1h"
// selects entries newer than an hour.
func (c *FilterCondition) matchTime(fieldValue time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return fieldValue.After(c.atOp)
	case FilterOpLess:
		return fieldValue.Before(c.atOp)
	case FilterOpGreaterEq:
		return !fieldValue.Before(c.atOp)
	case FilterOpLessEq:
		return !fieldValue.After(c.atOp)
	default:
		return false
	}
}

// FilterWithExpr filters entries using a filter expression.
func FilterWithExpr(changes []model.StateChange, expr *FilterExpr) []model.StateChange {
	if expr == nil || len(expr.Conditions) == 0 {
		return changes
	}

	result := make([]model.StateChange, 0, len(changes))
	for _, c := range changes {
		if expr.Match(c) {
			result = append(result, c)
		}
	}
	return result
}
