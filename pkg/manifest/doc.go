// SPDX-License-Identifier: MPL-2.0

// Package manifest augments Gramine manifests so that the RA-TLS quote
// verification library is loaded into the enclave process via LD_PRELOAD.
//
// The augmentation applies only to manifests that enable DCAP remote
// attestation, is idempotent, and preserves all unrelated manifest content
// byte for byte. Two manifest representations are supported through the
// Document interface:
//   - TextDocument performs line-oriented surgery on raw manifest text,
//     tolerating both the grouped-table dialect ([sgx], [loader.env]) and
//     the fully-qualified dotted-key dialect (sgx.remote_attestation,
//     loader.env.LD_PRELOAD).
//   - MapDocument mutates a nested key-value mapping, for callers that hold
//     a structured manifest prior to TOML serialization.
//
// Engine sequences the pipeline: disable flag, attestation-mode detection,
// library lookup, idempotency guard, and finally the two injections
// (preload environment first, trusted-files array second). Every skip and
// every I/O failure degrades to a logged no-op; the engine has no fatal
// error path.
package manifest
