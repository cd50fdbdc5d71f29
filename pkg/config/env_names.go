package config

// EnvPrefix is passed to envconfig; individual fields carry full names so the
// prefix only matters for non-tagged fields.
const EnvPrefix = "inventory"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	WMSModeMock = "mock"
	WMSModeHTTP = "http"
)

const (
	EnvAppEnv       = "INVENTORY_APP_ENV"
	EnvGCPProjectID = "INVENTORY_GCP_PROJECT_ID"

	EnvDBDSN  = "INVENTORY_DB_DSN"
	EnvDBHost = "INVENTORY_DB_HOST"
	EnvDBUser = "INVENTORY_DB_USER"
	EnvDBName = "INVENTORY_DB_NAME"

	EnvWMSBaseURL = "INVENTORY_WMS_BASE_URL"
	EnvWMSAPIKey  = "INVENTORY_WMS_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
