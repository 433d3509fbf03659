// Package domain holds the identifier and value types shared across trialgate
// modules. Parsing helpers enforce format invariants at trust boundaries so
// services can treat the typed values as already validated.
package domain

import (
	"fmt"
	"strings"

	dErrors "trialgate/pkg/domain-errors"
)

// ParticipantID is the trial-wide participant identifier (PAT001, PAT002, ...).
// It is assigned sequentially at enrollment and never reused.
type ParticipantID string

// FormatParticipantID renders the nth participant identifier. Sequence numbers
// start at 1.
func FormatParticipantID(seq int) ParticipantID {
	return ParticipantID(fmt.Sprintf("PAT%03d", seq))
}

// ParseParticipantID validates an externally supplied participant identifier.
func ParseParticipantID(raw string) (ParticipantID, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "participant id is required")
	}
	if !strings.HasPrefix(s, "PAT") || len(s) < 6 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "participant id must match PATnnn").WithRecord(raw)
	}
	for _, r := range s[3:] {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "participant id must match PATnnn").WithRecord(raw)
		}
	}
	return ParticipantID(s), nil
}

func (p ParticipantID) String() string { return string(p) }

// SiteCode identifies a trial site (e.g. SITE01). Codes are stored upper-case;
// comparisons everywhere go through ParseSiteCode so case variance in input
// cannot split one site into two.
type SiteCode string

// ParseSiteCode normalizes and validates a site code.
func ParseSiteCode(raw string) (SiteCode, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "site code is required")
	}
	if len(s) > 16 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "site code must be 16 characters or less").WithRecord(raw)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "site code must be alphanumeric").WithRecord(raw)
		}
	}
	return SiteCode(s), nil
}

func (s SiteCode) String() string { return string(s) }

// PackID identifies a physical drug-supply unit (e.g. BYL042).
type PackID string

// ParsePackID normalizes and validates a pack identifier.
func ParsePackID(raw string) (PackID, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "pack id is required")
	}
	if len(s) > 32 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "pack id must be 32 characters or less").WithRecord(raw)
	}
	return PackID(s), nil
}

func (p PackID) String() string { return string(p) }

// ConsignmentID identifies a depot-to-site consignment (CON-BYL001, ...).
type ConsignmentID string

// FormatConsignmentID renders the nth consignment identifier.
func FormatConsignmentID(seq int) ConsignmentID {
	return ConsignmentID(fmt.Sprintf("CON-BYL%03d", seq))
}

func (c ConsignmentID) String() string { return string(c) }
