package api

// API paths, relative to the configured base URL.
const (
	TokenPath = "/oauth2/token"

	PutFilesEntitiesPath = "/real-time-response/entities/put-files/v1"
	PutFilesQueriesPath  = "/real-time-response/queries/put-files/v1"
	ScriptsQueriesPath   = "/real-time-response/queries/scripts/v1"
	ScriptsEntitiesPath  = "/real-time-response/entities/scripts/v1"

	BatchInitSessionPath      = "/real-time-response/combined/batch-init-session/v1"
	SessionAdminCommandPath   = "/real-time-response/entities/admin-command/v1"
	BatchCommandPath          = "/real-time-response/combined/batch-command/v1"
	BatchAdminCommandPath     = "/real-time-response/combined/batch-admin-command/v1"
	BatchResponderCommandPath = "/real-time-response/combined/batch-active-responder-command/v1"

	DevicesQueriesPath  = "/devices/queries/devices/v1"
	DevicesScrollPath   = "/devices/queries/devices-scroll/v1"
	DevicesEntitiesPath = "/devices/entities/devices/v1"

	IOCsEntitiesPath = "/indicators/entities/iocs/v1"
)
