// Package support defines the data model shared by the troubleshooting
// suggestion engine.
//
// It holds the captured error records and knowledge-base articles the engine
// reads, the append-only feedback log and the relevance weights derived from
// it, plus the repository contracts the storage layer implements and the
// error taxonomy every component reports through.
//
// # Error Taxonomy
//
//   - ErrNotFound: a referenced error record or article does not exist
//   - ErrValidation: malformed feedback input
//   - ErrPartialRetrieval: one retrieval tier failed or timed out; the
//     suggestion call still succeeds
//   - ErrPersistence: the feedback row itself could not be written
//
// Errors are wrapped with fmt.Errorf("...: %w") and matched with errors.Is.
package support
