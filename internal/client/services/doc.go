// Package services contains the client-side application services:
// SyncService reconciles the local manifest cache with the backend vlob
// store, and BlockService moves encrypted file blocks through presigned
// object storage URLs.
package services
