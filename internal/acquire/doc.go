// Package acquire drives a platform's sources through download, hash
// verification, trust arbitration and extraction until one is installed.
//
// For each source, in registry order:
//
//  1. If <dest>/<archive> exists and its top-level entry is already a
//     directory under <dest>, the artifact is installed. Nothing is fetched
//     or re-verified.
//  2. If the cached archive matches its recorded hash, it is extracted.
//  3. Otherwise the archive is downloaded. Network failures move on to the
//     next source.
//  4. The download is hashed. A match is extracted; an unknown or mismatching
//     hash goes to the trust arbiter, which may accept it (optionally
//     recording the new hash) or reject it in favour of the next source.
//
// When every source fails the result is an *AllSourcesFailedError naming each
// source and why it was skipped.
package acquire
