package config

import (
	"errors"

	"github.com/spf13/viper"
)

const (
	topics           = "_TOPICS"
	bootstrapURLs    = "_BOOTSTRAP_SERVERS"
	saslUsername     = "_SASL_USERNAME"
	saslPassword     = "_SASL_PASSWORD"
	saslMechanism    = "_SASL_MECHANISM"
	securityProtocol = "_SECURITY_PROTOCOL"
	clientId         = "_CLIENT_ID"
	acks             = "_ACKS"
)

// ProducerConfig holds Kafka producer connection settings.
type ProducerConfig struct {
	BootstrapURLs    string
	SaslUsername     string
	SaslPassword     string
	SaslMechanism    string
	SecurityProtocol string
	ClientID         string
	Topic            string
	Acks             string
}

// BuildProducerConfigFromEnv builds a ProducerConfig from env vars with the given prefix,
// e.g. KAFKA_DEADLETTER_TOPICS. Topic, bootstrap servers and client id are required;
// auth fields are optional and acks defaults to "all".
func BuildProducerConfigFromEnv(envPrefix string) (*ProducerConfig, error) {
	for _, required := range []string{topics, bootstrapURLs, clientId} {
		if !viper.IsSet(envPrefix + required) {
			return nil, errors.New(envPrefix + required + " not set")
		}
	}
	cfg := &ProducerConfig{
		Topic:            viper.GetString(envPrefix + topics),
		BootstrapURLs:    viper.GetString(envPrefix + bootstrapURLs),
		SaslUsername:     viper.GetString(envPrefix + saslUsername),
		SaslPassword:     viper.GetString(envPrefix + saslPassword),
		SaslMechanism:    viper.GetString(envPrefix + saslMechanism),
		SecurityProtocol: viper.GetString(envPrefix + securityProtocol),
		ClientID:         viper.GetString(envPrefix + clientId),
		Acks:             "all",
	}
	if viper.IsSet(envPrefix + acks) {
		cfg.Acks = viper.GetString(envPrefix + acks)
	}
	return cfg, nil
}
