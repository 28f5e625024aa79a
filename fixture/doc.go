// Package fixture provides the named response fixtures served by the mock
// device.
//
// A fixture is a blob of response text looked up by name, e.g.
// "player.get_volume". The only contract the device needs is Provider:
//
//	text, err := provider.Fetch(ctx, "player.get_volume")
//	if errors.Is(err, fixture.ErrNotFound) {
//		// unknown fixture
//	}
//
// The package supports:
//   - Sharded in-memory fixtures (Memory)
//   - Fixture files on disk, one "<name>.json" per fixture (Dir)
//   - Fixtures stored in Redis (Redis)
//   - A bounded worker pool for blocking lookups (Pool)
//   - Layered lookups (Chain)
package fixture
