// Package dataset defines the penguin measurement table and its loaders.
//
// A Table is immutable once built: every operation that narrows it returns
// a new Table and leaves the receiver untouched. Numeric columns hold a
// Measurement, which carries an explicit Valid flag for missing values.
//
// Tables come from a Source. EmbeddedSource serves a bundled sample of the
// Palmer Penguins data; FileSource and S3Source read the full CSV from disk
// or from an S3 bucket.
package dataset
