package models

// OAuth2 is the client-credentials configuration a technical service
// provider publishes for its token endpoint. ClientSecretEnvVar names the
// environment variable holding the secret; the directory never carries the
// secret itself.
type OAuth2 struct {
	TokenEndpoint      string `json:"token_endpoint"`
	Method             string `json:"method"`
	CredentialsMode    string `json:"credentials_transport_mode"`
	ClientID           string `json:"client_id"`
	ClientSecretEnvVar string `json:"client_secret_env_var"`
	Scope              string `json:"scope"`
	MTLSEnabled        bool   `json:"mtls_enabled"`
}

// TechnicalServiceProvider is the routing and security record for the
// infrastructure operating one or more service providers.
type TechnicalServiceProvider struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	ServiceEndpoint         string  `json:"service_endpoint"`
	CertificateSerialNumber string  `json:"certificate_serial_number"`
	OAuth2                  *OAuth2 `json:"oauth2,omitempty"`
	MTLSEnabled             bool    `json:"mtls_enabled"`
}

// ServiceProvider is one PSP listed in the directory.
type ServiceProvider struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TSPID      string `json:"tsp_id"`
	PSPTaxCode string `json:"psp_tax_code"`
}

// RegistryData is the versionless JSON document fetched from the external
// source: two flat arrays joined by ServiceProvider.TSPID.
type RegistryData struct {
	TSPs []TechnicalServiceProvider `json:"tsps"`
	SPs  []ServiceProvider          `json:"sps"`
}

// ServiceProviderFullData joins a service provider to its technical
// provider. TSP is nil when the directory references a technical provider
// id that is absent from the snapshot; that is missing routing detail, not
// a cache failure.
type ServiceProviderFullData struct {
	SP  ServiceProvider
	TSP *TechnicalServiceProvider
}
