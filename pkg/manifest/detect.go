// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"regexp"
	"strings"
)

const (
	// attestationTable is the manifest table holding SGX attestation keys.
	attestationTable = "sgx"
	// attestationModeDCAP is the hardware-backed remote-attestation mode.
	attestationModeDCAP = "dcap"
)

var (
	// sgx.remote_attestation = "dcap", fully-qualified dialect. Valid
	// anywhere in the manifest, optionally followed by a comment.
	dottedDCAPPattern = regexp.MustCompile(`(?i)^sgx\.remote_attestation\s*=\s*"dcap"\s*(#.*)?$`)

	// remote_attestation = "dcap", bare-key dialect. Only meaningful while
	// inside the [sgx] table.
	bareDCAPPattern = regexp.MustCompile(`(?i)^remote_attestation\s*=\s*"dcap"\s*(#.*)?$`)
)

// Attested reports whether manifest text configures DCAP remote
// attestation. Both dialects are recognized, case-insensitively: a
// fully-qualified sgx.remote_attestation assignment matched anywhere, or a
// bare remote_attestation key matched only inside the [sgx] table. Comment
// lines are skipped.
func Attested(text string) bool {
	return NewTextDocument(text).Attested()
}

// Attested implements Document for TextDocument. See Attested.
func (d *TextDocument) Attested() bool {
	inAttestationTable := false

	for _, line := range d.lines {
		if isComment(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)

		if isBracketHeader(line) {
			if strings.EqualFold(headerName(line), attestationTable) {
				inAttestationTable = true
			} else if inAttestationTable {
				inAttestationTable = false
			}
			continue
		}

		if dottedDCAPPattern.MatchString(trimmed) {
			return true
		}
		if inAttestationTable && bareDCAPPattern.MatchString(trimmed) {
			return true
		}
	}

	return false
}
