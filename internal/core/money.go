// Package core provides money parsing and formatting utilities.
//
// Amounts are whole won (the smallest currency unit) held in int64. Parsing
// is deliberately lenient: text typed into an amount or rate cell never makes
// a numeric field non-numeric, it degrades to zero instead.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount strips every non-digit from s and parses what remains.
// Empty or overflowing input yields 0.
//
// Examples:
//
//	ParseAmount("₩1,234,567") -> 1234567
//	ParseAmount("50,000,000원") -> 50000000
//	ParseAmount("abc") -> 0
func ParseAmount(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseRate parses a percentage such as "4.5" or "4.5%". Unparseable input
// yields 0.
func ParseRate(s string) float64 {
	s = strings.Map(func(r rune) rune {
		if r == '%' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatWon formats an amount as "₩1,234,567". ParseAmount inverts it for
// non-negative values.
func FormatWon(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₩")
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatWonFloat rounds a fractional amount (interest) to whole won first.
func FormatWonFloat(amount float64) string {
	return FormatWon(int64(math.Round(amount)))
}

// FormatDDay renders a signed day count: D-12, D-Day, or D+3 (연체) once
// the due date has passed.
func FormatDDay(dday int) string {
	switch {
	case dday < 0:
		return fmt.Sprintf("D+%d (연체)", -dday)
	case dday == 0:
		return "D-Day"
	default:
		return fmt.Sprintf("D-%d", dday)
	}
}
