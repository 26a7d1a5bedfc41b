// Package session stores the festival's rooms.
//
// The session package implements:
//   - Thread-safe room storage keyed by 4-character room codes
//   - Collision-checked code generation using cryptographic randomness
//   - Per-room locking so different rooms change in parallel
//   - A round id index used by the score and end-round routes
//   - Pluggable persistence: JSON files, PostgreSQL or Redis
//
// Room Codes:
//
// Codes are drawn from an alphabet without 0/O and 1/I so they can be read
// aloud across a room. Lookups ignore case; codes are stored upper-cased.
//
// Mutations:
//
// Every change goes through Update, which hands the callback the live room
// under that room's lock, stamps UpdatedAt and persists the result. Get,
// List and Update all return snapshots; callers never share the live room.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("rooms")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//
//	r, err := manager.Create(ctx, room.Options{Name: "Night Market", HostName: "Mai"})
//
//	r, err = manager.Update(ctx, r.Code, func(r *room.Room) error {
//		_, err := r.Join("Ana", time.Now())
//		return err
//	})
//
// Persistence failures on the write path are logged and do not fail the
// mutation; the in-memory room stays authoritative.
package session
