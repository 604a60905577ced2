// Package storage manages files in the sitemap output directory.
//
// Manager wraps a go-billy filesystem so the same code runs against the local
// disk in production and an in-memory filesystem in tests. All writes are
// atomic: content lands in a hidden temporary file next to the target and is
// renamed over it once fully written.
//
// Usage:
//
//	manager, err := storage.NewManager("public")
//	if err != nil {
//	    return err
//	}
//	if err := manager.WriteAtomic("sitemap-1.xml", data); err != nil {
//	    return err
//	}
package storage
