// Package indexer derives and maintains the search_index projection.
//
// Every index column is computed from the owning entity alone, so the
// whole table can be regenerated at any time with RebuildIndex. Writers
// call UpdateEntityIndex synchronously after each entity write; batch
// population pages through entities in creation order with one
// transaction per batch and recovers from per-row failures.
//
// Derivation rules (see Derive):
//   - normalized_name: lowercased name
//   - name_tokens: camelCase/underscore/hyphen split, lowercased
//   - file_path / file_extension: first recognized path field in the
//     entity's data document
//   - tags: tag-bearing data fields, lowercased and space-joined
//   - full_text: name, type and free-text data fields
//   - trigrams: overlapping 3-rune substrings of the normalized name
package indexer
