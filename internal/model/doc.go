// Package model contains the shared interfaces and data types used
// across exphost packages.
//
// The interfaces in this package describe the external collaborators of
// the resolution pipeline (HTTP client, durable key-value store, launch
// history database, connectivity probe) so that every component can be
// exercised in tests without real I/O.
package model
