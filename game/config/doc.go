// Package config provides the mini-game catalog for the festival lobby.
//
// The config package handles:
//   - The built-in festival sequence (fishing, horse, shooting, cotton, pray)
//   - Loading overrides and extra games from JSON files
//   - Catalog validation
//   - Turning the enabled games into the round sequence a room plays
//
// Catalog Format:
//
// Each *.json file in the catalog directory holds one game or an array of
// games:
//
//	{"key": "fishing", "name": "Fish Scooping", "order": 1, "duration": 45, "enabled": true}
//
// A file game replaces the built-in game with the same key. Setting
// "enabled": false removes a game from the sequence without deleting it.
// Rounds are played in ascending order, ties broken by key.
//
// Usage:
//
//	catalog, err := config.NewManager("catalog")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, g := range catalog.Sequence() {
//		fmt.Println(g.Order, g.Key)
//	}
//
//	stages := catalog.Stages() // handed to room.StartRound
//
// Validation:
//
// Every game needs a key without path separators, a positive order and a
// non-negative duration. Keys must be unique and at least one game must be
// enabled.
package config
