// Package location owns per-user location state and the rule that decides
// who may see it.
//
// Invariants:
// - At most one record exists per identity; records are never deleted.
// - Writes to one identity are serialized; history order is write order.
// - A viewer set never contains its owner.
// - A record is visible only while sharing is on and the viewer is authorized.
//
// Usage:
//
//	store := location.NewStore(location.WithReadPolicy(location.ReadStrict))
//	_, _ = store.Update("alice", location.Position{Lat: 10, Lng: 20})
//	_, _ = store.SetSharing("alice", true)
//	rec, _ := store.AddViewer("alice", "bob")
//	_ = location.CanView("bob", rec) // true
package location
