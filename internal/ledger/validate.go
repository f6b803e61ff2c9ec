package ledger

import (
	"regexp"
	"strings"
)

// plateRe splits a normalized plate into region code, number and series.
var plateRe = regexp.MustCompile(`^([A-Z]{1,2})(\d{1,4})([A-Z]{1,3})$`)

// driverNameRe restricts driver names to alphanumerics and spaces.
var driverNameRe = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)

// plateRegions enumerates the accepted regional code prefixes.
var plateRegions = map[string]bool{
	"A": true, "B": true, "D": true, "E": true, "F": true, "G": true,
	"H": true, "K": true, "L": true, "M": true, "N": true, "P": true,
	"R": true, "S": true, "T": true, "W": true, "Z": true,
	"AA": true, "AB": true, "AD": true, "AE": true, "AG": true,
	"BA": true, "BB": true, "BD": true, "BE": true, "BG": true,
	"BH": true, "BK": true, "BL": true, "BM": true, "BN": true,
	"BP": true, "DA": true, "DB": true, "DD": true, "DK": true,
	"DL": true, "DM": true, "DN": true, "DR": true, "DT": true,
	"EA": true, "EB": true, "ED": true, "KB": true, "KH": true,
	"KT": true, "KU": true, "PA": true, "PB": true,
}

// PlateResult is the outcome of license plate validation.
type PlateResult struct {
	Valid      bool
	Normalized string
	Err        string
}

// ValidateLicensePlate normalizes a raw plate (spaces stripped, uppercased)
// and validates it: overall length 4-12, region code from the enumerated
// whitelist, a 1-4 digit number that is neither zero nor zero-padded, and
// a 1-3 letter series suffix.
func ValidateLicensePlate(raw string) PlateResult {
	normalized := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if normalized == "" {
		return PlateResult{Err: "plate number is required"}
	}
	if len(normalized) < 4 || len(normalized) > 12 {
		return PlateResult{Normalized: normalized, Err: "plate number must be 4-12 characters"}
	}

	parts := plateRe.FindStringSubmatch(normalized)
	if parts == nil {
		return PlateResult{Normalized: normalized, Err: "plate number format is invalid"}
	}

	region, number := parts[1], parts[2]
	if !plateRegions[region] {
		return PlateResult{Normalized: normalized, Err: "unknown region code " + region}
	}
	if number[0] == '0' {
		// Covers both all-zero and zero-padded numbers.
		return PlateResult{Normalized: normalized, Err: "plate number segment must not start with zero"}
	}

	return PlateResult{Valid: true, Normalized: normalized}
}

// ValidateDriverName rejects empty names and any character outside
// alphanumerics and spaces.
func ValidateDriverName(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Reason: ReasonRequired, Field: "driver_name"}
	}
	if !driverNameRe.MatchString(raw) {
		return &ValidationError{
			Reason: ReasonBadFormat,
			Field:  "driver_name",
			Detail: "only letters, digits and spaces are allowed",
		}
	}
	return nil
}
