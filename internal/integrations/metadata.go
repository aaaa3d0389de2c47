package integrations

import "encoding/json"

// Metadata describes an integration to the builder UI and the runtime. It is
// built once per adapter and never mutated afterwards.
type Metadata struct {
	ID                  string
	Version             string
	Name                string
	Description         string
	Category            string
	IconS3Key           string
	Color               string
	Schema              Schema
	CredentialsProvider string
	CredentialsStrategy string
	LibraryName         string
	Examples            []Example

	// ProviderLabel is the human readable provider name used in error
	// descriptions, e.g. "OpenWeatherMap".
	ProviderLabel string
}

type Example struct {
	Title  string         `json:"title"`
	Config map[string]any `json:"config"`
}

type metadataJSON struct {
	ID                  string    `json:"id"`
	Version             string    `json:"version"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	IconS3Key           string    `json:"icon_s3_key,omitempty"`
	Color               string    `json:"color,omitempty"`
	ConfigSchema        Schema    `json:"config_schema"`
	CredentialsProvider *string   `json:"credentials_provider"`
	CredentialsStrategy *string   `json:"credentials_strategy"`
	LibraryName         *string   `json:"library_name"`
	Examples            []Example `json:"examples"`
}

func (m *Metadata) MarshalJSON() ([]byte, error) {
	examples := m.Examples
	if examples == nil {
		examples = []Example{}
	}
	return json.Marshal(metadataJSON{
		ID:                  m.ID,
		Version:             m.Version,
		Name:                m.Name,
		Description:         m.Description,
		Category:            m.Category,
		IconS3Key:           m.IconS3Key,
		Color:               m.Color,
		ConfigSchema:        m.Schema,
		CredentialsProvider: nullable(m.CredentialsProvider),
		CredentialsStrategy: nullable(m.CredentialsStrategy),
		LibraryName:         nullable(m.LibraryName),
		Examples:            examples,
	})
}

// RequiresCredentials reports whether Execute resolves stored credentials
// before doing anything else.
func (m *Metadata) RequiresCredentials() bool {
	return m.CredentialsProvider != ""
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
