/*
Package fmindex provides a block-compressed FM-index over genomic text.

An FM-index is a self-index: given only the Burrows-Wheeler transform of
a text plus a modest amount of auxiliary data, it answers exact-match
count and locate queries, random symbol access, and backwards text
regeneration in sublinear time and roughly constant extra space per
query.

This module does not build the suffix array or the BWT itself - those
are treated as external collaborators the core consumes as streams (see
package eis/source.go for a reference in-memory producer used by tests
and the command-line tools). The hard engineering lives in three
packages:

  - eis: the block-compressed enhanced indexed sequence - the on-disk
    format, its single-pass builder, and its super-block-cached reader.
  - bwtindex: the BWT-sequence layer built on top of an eis.Index -
    the C[] table, LF-mapping, backwards search, and locate.
  - context: the BWT context retriever - a sparse forward sampling table
    that lets bwtindex regenerate any substring of the original text.

Supporting packages (bitpack, alphabet, compperm, rangelist) implement
the bit-packing and combinatorial primitives those three depend on.

Browse the subpackages for the functionality and documentation you need:
https://pkg.go.dev/github.com/polyfm/fmindex#section-directories
*/
package fmindex
