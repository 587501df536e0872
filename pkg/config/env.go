package config

const (
	EnvPrefix = "BOOKKEEPER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "BOOKKEEPER_APP_ENV"
	EnvPort   = "BOOKKEEPER_APP_PORT"

	EnvDBDSN  = "BOOKKEEPER_DB_DSN"
	EnvDBHost = "BOOKKEEPER_DB_HOST"
	EnvDBUser = "BOOKKEEPER_DB_USER"
	EnvDBName = "BOOKKEEPER_DB_NAME"

	EnvRedisURL = "BOOKKEEPER_REDIS_URL"

	EnvGCPProjectID = "BOOKKEEPER_GCP_PROJECT_ID"

	EnvPubSubProcessorEventsSub = "BOOKKEEPER_PUBSUB_PROCESSOR_EVENTS_SUBSCRIPTION"
	EnvPubSubBillingTopic       = "BOOKKEEPER_PUBSUB_BILLING_TOPIC"

	EnvStripeEnv           = "BOOKKEEPER_STRIPE_ENV"
	EnvStripeTestSecretKey = "BOOKKEEPER_STRIPE_TEST_SECRET_KEY"
	EnvStripeLiveSecretKey = "BOOKKEEPER_STRIPE_LIVE_SECRET_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
