// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default constants shared with packages that need them outside of viper
const (
	DefaultLatitude       = 47.3769
	DefaultLongitude      = 8.5417
	DefaultTimezone       = "Europe/Zurich"
	DefaultDailyBudget    = 280
	DefaultMetNoBaseURL   = "https://api.met.no/weatherapi/sunrise/3.0"
	DefaultSolarEdgeURL   = "https://monitoringapi.solaredge.com"
	DefaultUserAgent      = "pvpoll/1.0 github.com/solarwindow/pvpoll"
	DefaultRequestTimeout = 10 * time.Second
)

// setDefaultConfig registers every default with viper
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("location.latitude", DefaultLatitude)
	viper.SetDefault("location.longitude", DefaultLongitude)
	viper.SetDefault("location.timezone", DefaultTimezone)

	viper.SetDefault("ephemeris.provider", "analytic")
	viper.SetDefault("ephemeris.datafile", "")

	viper.SetDefault("sunrise.provider", "metno")
	viper.SetDefault("sunrise.fallback", "astral")
	viper.SetDefault("sunrise.baseurl", DefaultMetNoBaseURL)
	viper.SetDefault("sunrise.useragent", DefaultUserAgent)
	viper.SetDefault("sunrise.timeout", DefaultRequestTimeout)
	viper.SetDefault("sunrise.cachettl", 24*time.Hour)

	viper.SetDefault("solaredge.siteid", "")
	viper.SetDefault("solaredge.apikey", "")
	viper.SetDefault("solaredge.baseurl", DefaultSolarEdgeURL)
	viper.SetDefault("solaredge.timeout", DefaultRequestTimeout)

	viper.SetDefault("budget.daily", DefaultDailyBudget)
	viper.SetDefault("budget.persist", false)

	viper.SetDefault("scheduler.fetchtimeout", DefaultRequestTimeout)
	viper.SetDefault("scheduler.followupinterval", 10*time.Minute)
	viper.SetDefault("scheduler.pauseduration", 15*time.Minute)
	viper.SetDefault("scheduler.failurethreshold", 5)
	viper.SetDefault("scheduler.startupfetch", true)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "pvpoll")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topic", "pvpoll/solar")
	viper.SetDefault("mqtt.retain", true)
	viper.SetDefault("mqtt.homeassistant.enabled", false)
	viper.SetDefault("mqtt.homeassistant.discoveryprefix", "homeassistant")
	viper.SetDefault("mqtt.homeassistant.devicename", "pvpoll")

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", "127.0.0.1:8089")

	viper.SetDefault("database.path", "pvpoll.db")

	viper.SetDefault("notification.urls", []string{})

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.filelevel", "info")
	viper.SetDefault("log.maxsize", 10)
	viper.SetDefault("log.maxbackups", 3)
	viper.SetDefault("log.maxage", 28)
}
