// Package store provides file-backed access to level documents.
//
// The store package handles:
//   - Discovery of level_*.json files below a levels directory
//   - Loading and parsing with a stat-checked read cache
//   - Atomic write-back of annotated documents
//   - Timestamped backups before a batch overwrites files
//
// Level names are paths relative to the levels directory, with or without the
// .json extension ("level_12", "module_2/level_40.json").
//
// Usage:
//
//	st, err := store.New("assets/levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	names, err := st.Discover()
//	doc, err := st.Load(names[0])
//	err = st.Save(names[0], doc)
//
// Atomicity:
//
// Save writes into a temporary file in the destination directory, syncs it and
// renames it over the original, so a crash leaves either the original bytes or
// the complete annotated document, never a partial file.
package store
