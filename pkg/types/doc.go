// Package types defines the note record variants, the media blob, the Store
// contract, configuration, and the error taxonomy shared by every sitenotes
// component. It holds no I/O of its own.
package types
