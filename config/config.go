package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type DBConfig struct {
	Type    string `yaml:"type" json:"type"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Name    string `yaml:"name" json:"name"`
	User    string `yaml:"user" json:"user"`
	Passwd  string `yaml:"passwd" json:"passwd"`
	MaxConn int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int   `yaml:"idle_conn" json:"idle_conn"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "RinconLaurel",
		Location: "Europe/Madrid",
		Workdir:  "/var/rincon-laurel",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 8001,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "rincon_laurel",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/rincon-laurel/rincon-laurel.log",
	},
}

func setEnvValue(name string, val *string) {
	evalue := os.Getenv(name)
	if evalue != "" {
		*val = evalue
	}
}

func setEnvIntValue(name string, val *int) {
	evalue := os.Getenv(name)
	if evalue != "" {
		*val = cast.ToInt(evalue)
	}
}

func setEnvBoolValue(name string, val *bool) {
	evalue := os.Getenv(name)
	if evalue != "" {
		*val = evalue == "true" || evalue == "1" || evalue == "on"
	}
}

// LoadConfig loads the configuration file and applies environment overrides.
// A missing file is not an error, the defaults are used instead.
func LoadConfig(cfile string) *AppConfig {
	appconfig := DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			appconfig = new(AppConfig)
			if err := yaml.Unmarshal(data, appconfig); err != nil {
				panic(err)
			}
		}
	}

	setEnvValue("LAUREL_SYSTEM_WORKDIR", &appconfig.System.Workdir)
	setEnvValue("LAUREL_SYSTEM_LOCATION", &appconfig.System.Location)
	setEnvBoolValue("LAUREL_SYSTEM_DEBUG", &appconfig.System.Debug)

	setEnvValue("LAUREL_WEB_HOST", &appconfig.Web.Host)
	setEnvIntValue("LAUREL_WEB_PORT", &appconfig.Web.Port)

	setEnvValue("LAUREL_DB_TYPE", &appconfig.Database.Type)
	setEnvValue("LAUREL_DB_HOST", &appconfig.Database.Host)
	setEnvIntValue("LAUREL_DB_PORT", &appconfig.Database.Port)
	setEnvValue("LAUREL_DB_NAME", &appconfig.Database.Name)
	setEnvValue("LAUREL_DB_USER", &appconfig.Database.User)
	setEnvValue("LAUREL_DB_PWD", &appconfig.Database.Passwd)

	setEnvValue("LAUREL_LOGGER_MODE", &appconfig.Logger.Mode)
	setEnvBoolValue("LAUREL_LOGGER_FILE_ENABLE", &appconfig.Logger.FileEnable)
	setEnvValue("LAUREL_LOGGER_FILENAME", &appconfig.Logger.Filename)

	if appconfig.Logger.Filename == "" {
		appconfig.Logger.Filename = filepath.Join(appconfig.System.Workdir, "rincon-laurel.log")
	}

	return appconfig
}
