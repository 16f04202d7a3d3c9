// Package cli is the GophVault device client: a small command loop over the
// local workspace cache and the backend.
//
// Commands either come from the process arguments (one shot) or from an
// interactive prompt:
//
//	ping                       backend liveness and API version
//	pending                    entries with local changes
//	sync                       push every pending entry
//	pull <entry-id>            merge the latest remote manifest
//	put <path>                 store a local file as a new entry
//	get <entry-id> <path>      write an entry's content to path
//	enrollment <org> <id>      state of a PKI enrollment
//	org-config                 organization settings
package cli
