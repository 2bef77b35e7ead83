// Package bizref serializes graphs of identity-bearing entities as JSON.
//
// # Entities and business ids
//
// An entity embeds [models.Base] and is identified by a [models.BusinessID]: a
// 64-bit integer minted by [idgen.Generator] and written on the wire as its
// decimal string. Storage may assign a surrogate primary key as well; it never
// takes part in equality and is never serialized.
//
//	type Customer struct {
//		models.Base[Customer]
//		Name string `json:"name"`
//	}
//
// # Full and reference
//
// Wherever the [refjson] codec meets an entity, it writes either all of its
// fields (FULL) or only its business id (REFERENCE). The [scope] package decides
// the mode per position from ref struct tags, accessor and type annotations,
// embedded types and enclosing positions, falling back to the codec's default:
//
//	type InvoiceResponse struct {
//		Invoice *Invoice `json:"invoice" ref:"full"`
//	}
//
// Decoding a reference loads the entity through a [store.Loader]. [store.Memory]
// and the gorm-backed [postgres.PostgresStore] implement it.
//
// # Unwrapping
//
// A field tagged ref:",unwrapped" is merged into the enclosing object, optionally
// renamed with prefix= and suffix= options. A REFERENCE writes a single
// businessId member, a FULL entity all of its members.
//
// The contrib/ledger module, a separate go.mod, shows the pieces wired
// together behind an HTTP API.
//
// [idgen.Generator]: https://pkg.go.dev/github.com/bizref/bizref/pkg/idgen#Generator
// [models.Base]: https://pkg.go.dev/github.com/bizref/bizref/pkg/models#Base
// [models.BusinessID]: https://pkg.go.dev/github.com/bizref/bizref/pkg/models#BusinessID
// [refjson]: https://pkg.go.dev/github.com/bizref/bizref/refjson
// [scope]: https://pkg.go.dev/github.com/bizref/bizref/scope
// [store.Loader]: https://pkg.go.dev/github.com/bizref/bizref/pkg/store#Loader
// [store.Memory]: https://pkg.go.dev/github.com/bizref/bizref/pkg/store#Memory
// [postgres.PostgresStore]: https://pkg.go.dev/github.com/bizref/bizref/pkg/store/postgres#PostgresStore
package bizref
