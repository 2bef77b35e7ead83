// Package models defines business ids, the entity base type and reference modes.
//
// [BusinessID] is typed by the entity owning it, so a customer id cannot be
// passed where an invoice id is expected. [ID] is the same value with the type
// erased, as read off the wire before the owning type is known. Both have a
// canonical text form of a signed decimal and marshal to JSON strings, CBOR text
// and SQL bigint.
package models
