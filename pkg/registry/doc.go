// Package registry provides the publish ingestion and registration pipeline
// of a package registry with pluggable record and archive stores.
//
// A publish request body is a frame of two length-prefixed segments: JSON
// package metadata and the package archive. Publish decodes the frame, parses
// and validates the metadata, checksums the archive, builds a PackageRecord
// and registers it through RecordStore.PutRecordIfAbsent, which is the only
// place where concurrent publishers of the same (name, version) are resolved.
// The archive is written to the ArchiveStore only after registration
// succeeds.
//
// Record and archive stores are independent and there is no transaction
// spanning both. If the archive write fails, the record stays registered and
// the caller receives KindArchiveStoreFailed. The reconcile subpackage
// reports such records.
//
// Implementations of record stores (memory, Postgres, DynamoDB) and archive
// stores (memory, filesystem, S3) are provided under subpackages.
package registry
