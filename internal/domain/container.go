package domain

// Container is the host runtime a plugin is loaded into.
// The host decrypts configured secrets and receives every health change.
type Container interface {
	// Decrypt turns an opaque configured secret into its plain text.
	Decrypt(secret string) (string, error)

	// SetPluginHealth receives the complete health picture of pluginID.
	SetPluginHealth(pluginID string, health HealthResult)
}
