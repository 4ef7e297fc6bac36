package main

import (
	"strings"

	pkgviper "github.com/spf13/viper"

	"github.com/zinrai/l2network-mvp-go/internal/config"
)

const (
	configFlagName = "config"
	listenFlagName = "listen"

	databaseDriverKey   = "database.driver"
	databaseHostKey     = "database.host"
	databaseNameKey     = "database.name"
	databaseUserKey     = "database.user"
	databasePasswordKey = "database.password"
	databaseSSLModeKey  = "database.sslmode"
	vlanStartKey        = "vlan.start"
	vlanEndKey          = "vlan.end"
	nsxURLKey           = "nsx.url"
	nsxUserKey          = "nsx.user"
	nsxPasswordKey      = "nsx.password"
)

// bindEnvironment exposes every key as L2NETWORK_<KEY>, e.g.
// L2NETWORK_DATABASE_PASSWORD.
func bindEnvironment(v *pkgviper.Viper) {
	v.SetEnvPrefix("l2network")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// loadConfig reads the YAML file named by --config and overlays every value
// set through a flag or the environment.
func loadConfig(v *pkgviper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString(configFlagName))
	if err != nil {
		return nil, err
	}

	overlayString(v, listenFlagName, &cfg.Listen)
	overlayString(v, databaseDriverKey, &cfg.Database.Driver)
	overlayString(v, databaseHostKey, &cfg.Database.Host)
	overlayString(v, databaseNameKey, &cfg.Database.Name)
	overlayString(v, databaseUserKey, &cfg.Database.User)
	overlayString(v, databasePasswordKey, &cfg.Database.Password)
	overlayString(v, databaseSSLModeKey, &cfg.Database.SSLMode)
	overlayInt(v, vlanStartKey, &cfg.Vlan.Start)
	overlayInt(v, vlanEndKey, &cfg.Vlan.End)
	overlayString(v, nsxURLKey, &cfg.NSX.URL)
	overlayString(v, nsxUserKey, &cfg.NSX.User)
	overlayString(v, nsxPasswordKey, &cfg.NSX.Password)

	return cfg, cfg.Validate()
}

func overlayString(v *pkgviper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overlayInt(v *pkgviper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}
