package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWT: JWT{Secret: "test-secret", Issuer: "t", AccessTokenTTLHour: 2},
		DB:  DB{Driver: "mysql", DSN: "root@tcp(127.0.0.1:3306)/identity"},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingSecret(t *testing.T) {
	c := validConfig()
	c.JWT.Secret = "   "
	require.ErrorContains(t, c.Validate(), "jwt.secret")
}

func TestValidate_MissingDSN(t *testing.T) {
	c := validConfig()
	c.DB.DSN = ""
	require.ErrorContains(t, c.Validate(), "db.dsn")
}

func TestValidate_BadTTL(t *testing.T) {
	c := validConfig()
	c.JWT.AccessTokenTTLHour = 0
	require.Error(t, c.Validate())
}

func TestValidate_UnknownDriver(t *testing.T) {
	c := validConfig()
	c.DB.Driver = "oracle"
	require.ErrorContains(t, c.Validate(), "oracle")
}
