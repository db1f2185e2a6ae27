// Package storage manages the flat output directory documents are saved to.
//
// The directory doubles as an idempotency cache: a document counts as
// downloaded when a non-empty file with its name exists. Writes go to a
// ".part" file first and are renamed into place, so an interrupted transfer
// never leaves a non-empty partial document behind.
//
//	store, err := storage.NewManager("dataset8_pdfs")
//	if err != nil {
//		return err
//	}
//	if !store.IsDownloaded(name) {
//		n, err := store.Save(body, name)
//		...
//	}
package storage
