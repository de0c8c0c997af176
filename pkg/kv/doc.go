// Package kv provides a Redis-like key-value store abstraction used as the
// cache fallback when Redis is not reachable.
//
// Example usage:
//
//	store := memory.New(30 * time.Second)
//	defer store.Close()
//
//	ctx := context.Background()
//	err := store.Set(ctx, "key", []byte("value"), 10*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := store.Get(ctx, "key")
//	if errors.Is(err, kv.ErrNotFound) {
//		log.Println("Key not found")
//	}
//
// The in-memory implementation supports TTLs with lazy expiry on read and an
// optional background janitor.
package kv
