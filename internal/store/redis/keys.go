package redis

const (
	// KeyRoster is the hash of entity id -> record JSON
	KeyRoster = "presence:roster"
	// KeyOnline is the set of ids online in the last generation
	KeyOnline = "presence:online"
	// KeyAsOf holds the as-of marker of the last generation
	KeyAsOf = "presence:asof"
	// KeyServices is the set of service names of the last generation
	KeyServices = "presence:services"
	// KeyPrefixService is the prefix for per-service online sets
	KeyPrefixService = "presence:service:"
)

// ServiceKey returns the key of the online set for one service
func ServiceKey(name string) string {
	return KeyPrefixService + name
}
