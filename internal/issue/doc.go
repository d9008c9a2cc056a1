// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error context (ActionableError) and a
// catalog of rendered help texts for the failure modes ratlsctl can hit.
package issue
