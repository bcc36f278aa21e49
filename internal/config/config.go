// Package config is the profile-scoped configuration layer every bdj4go
// process loads at LOAD_INI. It keeps the teacher's env-var-with-default
// shape but reads from a profile's bdjconfig.txt (parsed as flat TOML)
// instead of pulling everything from the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DataTopDirEnv is the environment variable that overrides the default
// data-top directory, per the Environment section of the spec.
const DataTopDirEnv = "BDJ4_DATATOPDIR"

const defaultDataTopDir = "./data"

// Config is one profile's resolved configuration. Fields mirror the
// env-var config the teacher's config.Load returns, generalized from a
// single radio station's settings to a profile-scoped bdj4go deployment:
// music directory, database path, web server settings, and the auth
// credentials of the two Basic-auth web servers (remote control and the
// inter-host server).
type Config struct {
	Profile       int
	MusicDir      string
	DBPath        string
	LockDir       string
	WebDir        string
	RemoteUser    string
	RemotePass    string
	ServerUser    string
	ServerPass    string
	Timezone      string
	MaxWebClients int
}

// rawTable is the flat key/value shape bdjconfig.txt is parsed into
// before being mapped onto Config; BDJ4's on-disk format is a flat
// key=value list, which TOML's top-level table reads as directly.
type rawTable map[string]any

// Load reads the profile's bdjconfig.txt under dataTopDir (or
// BDJ4_DATATOPDIR if set and dataTopDir is empty) and returns a Config
// with defaults filled in for anything the file doesn't set, the same
// default-value-fallback shape as the teacher's getEnv/getEnvAsInt
// helpers.
func Load(dataTopDir string, profile int) (*Config, error) {
	top := dataTopDir
	if top == "" {
		top = getEnvDefault(DataTopDirEnv, defaultDataTopDir)
	}

	profileDir := filepath.Join(top, "data", strconv.Itoa(profile))
	cfgPath := filepath.Join(profileDir, "bdjconfig.txt")

	raw := rawTable{}
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, &raw); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", cfgPath, err)
		}
	}

	cfg := &Config{
		Profile:       profile,
		MusicDir:      rawString(raw, "MUSICDIR", filepath.Join(profileDir, "music")),
		DBPath:        rawString(raw, "DBPATH", filepath.Join(profileDir, "musicdb.json")),
		LockDir:       rawString(raw, "LOCKDIR", filepath.Join(top, "lock")),
		WebDir:        rawString(raw, "WEBDIR", "./web"),
		RemoteUser:    rawString(raw, "REMOTEUSER", "bdj4"),
		RemotePass:    rawString(raw, "REMOTEPASS", "bdj4"),
		ServerUser:    rawString(raw, "SERVERUSER", "bdj4"),
		ServerPass:    rawString(raw, "SERVERPASS", "bdj4"),
		Timezone:      rawString(raw, "TIMEZONE", ""),
		MaxWebClients: rawInt(raw, "MAXWEBCLIENTS", 100),
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func rawString(raw rawTable, key, def string) string {
	if v, ok := raw[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func rawInt(raw rawTable, key string, def int) int {
	if v, ok := raw[key]; ok {
		switch n := v.(type) {
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}
