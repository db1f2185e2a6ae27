// Package checkpoint persists listing collection progress so an interrupted
// run can skip pages it already rendered.
//
// A checkpoint stores the last completed page and the ordered filenames seen
// so far. It is tied to the listing URL template and first page; a checkpoint
// written for a different run is ignored. Files are written atomically via a
// temporary file and rename.
package checkpoint
