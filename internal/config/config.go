package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	District DistrictConfig
	Oracle   OracleConfig
	SMS      SMSConfig
	Policy   PolicyConfig
}

type ServerConfig struct {
	AuthToken string // optional bearer token for the API, empty disables auth
	TimeZone  string // IANA zone for "today" in attendance, defaults to local
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// DistrictConfig configures the district EMIS database that attendance
// records are exported to. Sync is disabled when DSN is empty.
type DistrictConfig struct {
	DSN      string // MySQL DSN, e.g. emis:secret@tcp(district:3306)/emis
	SchoolID string // school identifier used in exported rows
}

type OracleConfig struct {
	URL            string // face embedding service base URL, defaults to http://localhost:8000
	Dim            int    // embedding dimension (default 128)
	TimeoutSeconds int    // per-request timeout (default 15)
}

type SMSConfig struct {
	URL   string // SMS provider endpoint, empty disables notifications
	Token string // provider API token
	From  string // sender name/number
}

// PolicyConfig holds the matching and enrollment policy. Defaults come from
// the embedded policy.yaml and can be overridden per deployment via env vars.
type PolicyConfig struct {
	Matching struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"matching"`
	Enrollment struct {
		PhotoCount      int     `yaml:"photo_count"`
		MinFaceSize     int     `yaml:"min_face_size"`
		CenterTolerance float64 `yaml:"center_tolerance"`
	} `yaml:"enrollment"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	policy.Matching.Threshold = envFloat("MATCH_THRESHOLD", policy.Matching.Threshold)
	policy.Enrollment.PhotoCount = envInt("ENROLLMENT_PHOTO_COUNT", policy.Enrollment.PhotoCount)
	policy.Enrollment.MinFaceSize = envInt("ENROLLMENT_MIN_FACE_SIZE", policy.Enrollment.MinFaceSize)
	policy.Enrollment.CenterTolerance = envFloat("ENROLLMENT_CENTER_TOLERANCE", policy.Enrollment.CenterTolerance)

	return &Config{
		Server: ServerConfig{
			AuthToken: os.Getenv("API_AUTH_TOKEN"),
			TimeZone:  os.Getenv("SERVER_TIMEZONE"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		District: DistrictConfig{
			DSN:      os.Getenv("DISTRICT_MYSQL_DSN"),
			SchoolID: os.Getenv("DISTRICT_SCHOOL_ID"),
		},
		Oracle: OracleConfig{
			URL:            os.Getenv("ORACLE_URL"),
			Dim:            envInt("ORACLE_EMBEDDING_DIM", 128),
			TimeoutSeconds: envInt("ORACLE_TIMEOUT_SECONDS", 15),
		},
		SMS: SMSConfig{
			URL:   os.Getenv("SMS_PROVIDER_URL"),
			Token: os.Getenv("SMS_PROVIDER_TOKEN"),
			From:  os.Getenv("SMS_FROM"),
		},
		Policy: policy,
	}
}
