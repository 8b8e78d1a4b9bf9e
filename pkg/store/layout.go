package store

import "fmt"

// Blob-layout prefixes. One current slot per entity under functions/,
// immutable versioned copies under versions/, per-version metadata
// records plus the history ledger and registry record under metadata/,
// detached signatures under signatures/.
//
// Entity IDs are upper-cased by normalization, so the lower-case "_v"
// marker in versioned keys can never collide with an entity name.
const (
	currentPrefix   = "functions/"
	versionPrefix   = "versions/"
	metadataPrefix  = "metadata/"
	signaturePrefix = "signatures/"
)

func currentKey(entityID string) string {
	return fmt.Sprintf("%s%s.json", currentPrefix, entityID)
}

func versionKey(entityID, version string) string {
	return fmt.Sprintf("%s%s_v%s.json", versionPrefix, entityID, version)
}

func metadataKey(entityID, version string) string {
	return fmt.Sprintf("%s%s_v%s.json", metadataPrefix, entityID, version)
}

func historyKey(entityID string) string {
	return fmt.Sprintf("%s%s_history.json", metadataPrefix, entityID)
}

func signatureKey(entityID, version string) string {
	return fmt.Sprintf("%s%s_v%s.sig", signaturePrefix, entityID, version)
}

// RegistryRecordKey is where the file-backed registry keeps an entity's
// record on the shared blob backend. Store.Delete purges it as part of a
// full entity purge.
func RegistryRecordKey(entityID string) string {
	return fmt.Sprintf("%s%s_registry.json", metadataPrefix, entityID)
}
