// Package npio reads and writes NumPy array files.
//
// A .npy file holds a single typed, multi-dimensional array: a 10-byte
// preamble, a textual header dictionary describing dtype, byte order and
// shape, then the raw element bytes in row-major order. A .npz file is a
// zip archive of stored (uncompressed) .npy entries.
//
// Arrays round-trip bit for bit, and NpySave in Append mode grows an
// existing file along its leading dimension without rewriting the payload.
// Only little-endian data is supported.
package npio
