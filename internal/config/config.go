package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Universe struct {
	Path       string `yaml:"path"`
	MaxSymbols int    `yaml:"max_symbols"`
}

type Fetch struct {
	Interval           string `yaml:"interval"`      // bar interval, e.g. "5m"
	SymbolSuffix       string `yaml:"symbol_suffix"` // exchange suffix appended upstream, e.g. ".NS"
	WindowDays         int    `yaml:"window_days"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	MaxRetries         int    `yaml:"max_retries"`
	BackoffBaseMs      int    `yaml:"backoff_base_ms"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type Cache struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type ScoreWeights struct {
	Momentum      float64 `yaml:"momentum"`
	Volume        float64 `yaml:"volume"`
	VolumeZScore  float64 `yaml:"volume_zscore"`
	MACD          float64 `yaml:"macd"`
	RSI           float64 `yaml:"rsi"`
	Trend         float64 `yaml:"trend"`
	InvVolatility float64 `yaml:"inv_volatility"`
	SR            float64 `yaml:"support_resistance"`
	Confidence    float64 `yaml:"buy_confidence"`
}

type Blend struct {
	ML     float64 `yaml:"ml"`
	Engine float64 `yaml:"engine"`
}

type Scoring struct {
	Weights    ScoreWeights `yaml:"weights"`
	Blend      Blend        `yaml:"blend"`
	NoiseFloor float64      `yaml:"noise_floor"`
}

type Scan struct {
	IntervalMinutes int     `yaml:"interval_minutes"`
	Concurrency     int     `yaml:"concurrency"`
	TopN            int     `yaml:"top_n"`
	Hysteresis      float64 `yaml:"hysteresis"`
}

type AutoEntry struct {
	Enabled     bool    `yaml:"enabled"`
	MinScore    float64 `yaml:"min_score"`
	MinVolRatio float64 `yaml:"min_vol_ratio"`
	Size        float64 `yaml:"size"`
}

type Monitor struct {
	IntervalMinutes     int     `yaml:"interval_minutes"`
	SoftStopPct         float64 `yaml:"soft_stop_pct"`
	HardStopPct         float64 `yaml:"hard_stop_pct"`
	WarnFraction        float64 `yaml:"warn_fraction"`
	CooldownMinutes     int     `yaml:"cooldown_minutes"`
	AutoCloseOnHardStop bool    `yaml:"auto_close_on_hard_stop"`
}

type Market struct {
	Location string `yaml:"location"` // IANA zone, e.g. Asia/Kolkata
	Open     string `yaml:"open"`     // "09:15"
	Close    string `yaml:"close"`    // "15:30"
	Weekdays []int  `yaml:"weekdays"` // time.Weekday values, Mon=1
}

type Alerts struct {
	QueueSize      int    `yaml:"queue_size"`
	Workers        int    `yaml:"workers"`
	ExpoPushURL    string `yaml:"expo_push_url"`
	PushToken      string `yaml:"push_token"` // overridable via PUSH_TOKEN env
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Postgres struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"` // overridable via POSTGRES_DSN env
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type Storage struct {
	Postgres   Postgres `yaml:"postgres"`
	PicksPath  string   `yaml:"picks_path"`  // JSONL document sink
	AlertsPath string   `yaml:"alerts_path"` // JSONL notification log
}

type Logging struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Root struct {
	Universe  Universe  `yaml:"universe"`
	Fetch     Fetch     `yaml:"fetch"`
	Cache     Cache     `yaml:"cache"`
	Scoring   Scoring   `yaml:"scoring"`
	Scan      Scan      `yaml:"scan"`
	AutoEntry AutoEntry `yaml:"auto_entry"`
	Monitor   Monitor   `yaml:"monitor"`
	Market    Market    `yaml:"market"`
	Alerts    Alerts    `yaml:"alerts"`
	Storage   Storage   `yaml:"storage"`
	Logging   Logging   `yaml:"logging"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Universe.Path == "" {
		c.Universe.Path = "data/tickers.csv"
	}
	if c.Universe.MaxSymbols == 0 {
		c.Universe.MaxSymbols = 200
	}

	if c.Fetch.Interval == "" {
		c.Fetch.Interval = "5m"
	}
	if c.Fetch.SymbolSuffix == "" {
		c.Fetch.SymbolSuffix = ".NS"
	}
	if c.Fetch.WindowDays == 0 {
		c.Fetch.WindowDays = 1
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 10
	}
	if c.Fetch.MaxRetries == 0 {
		c.Fetch.MaxRetries = 3
	}
	if c.Fetch.BackoffBaseMs == 0 {
		c.Fetch.BackoffBaseMs = 500
	}
	if c.Fetch.RateLimitPerMinute == 0 {
		c.Fetch.RateLimitPerMinute = 120
	}

	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 90
	}

	if c.Scoring.Weights == (ScoreWeights{}) {
		c.Scoring.Weights = DefaultScoreWeights()
	}
	if c.Scoring.Blend.ML == 0 && c.Scoring.Blend.Engine == 0 {
		c.Scoring.Blend = Blend{ML: 0.5, Engine: 0.5}
	}
	if c.Scoring.NoiseFloor == 0 {
		c.Scoring.NoiseFloor = 0.5
	}

	if c.Scan.IntervalMinutes == 0 {
		c.Scan.IntervalMinutes = 15
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 40
	}
	if c.Scan.TopN == 0 {
		c.Scan.TopN = 5
	}
	if c.Scan.Hysteresis == 0 {
		c.Scan.Hysteresis = 0.05
	}

	if c.AutoEntry.MinScore == 0 {
		c.AutoEntry.MinScore = 0.6
	}
	if c.AutoEntry.MinVolRatio == 0 {
		c.AutoEntry.MinVolRatio = 1.2
	}
	if c.AutoEntry.Size == 0 {
		c.AutoEntry.Size = 1.0
	}

	if c.Monitor.IntervalMinutes == 0 {
		c.Monitor.IntervalMinutes = 1
	}
	if c.Monitor.SoftStopPct == 0 {
		c.Monitor.SoftStopPct = 3.0
	}
	if c.Monitor.HardStopPct == 0 {
		c.Monitor.HardStopPct = 7.0
	}
	if c.Monitor.WarnFraction == 0 {
		c.Monitor.WarnFraction = 0.6
	}
	if c.Monitor.CooldownMinutes == 0 {
		c.Monitor.CooldownMinutes = 15
	}

	if c.Market.Location == "" {
		c.Market.Location = "Asia/Kolkata"
	}
	if c.Market.Open == "" {
		c.Market.Open = "09:15"
	}
	if c.Market.Close == "" {
		c.Market.Close = "15:30"
	}
	if len(c.Market.Weekdays) == 0 {
		c.Market.Weekdays = []int{1, 2, 3, 4, 5}
	}

	if c.Alerts.QueueSize == 0 {
		c.Alerts.QueueSize = 1000
	}
	if c.Alerts.Workers == 0 {
		c.Alerts.Workers = 4
	}
	if c.Alerts.ExpoPushURL == "" {
		c.Alerts.ExpoPushURL = "https://exp.host/--/api/v2/push/send"
	}
	if c.Alerts.TimeoutSeconds == 0 {
		c.Alerts.TimeoutSeconds = 10
	}

	if c.Storage.PicksPath == "" {
		c.Storage.PicksPath = "data/top_picks.jsonl"
	}
	if c.Storage.AlertsPath == "" {
		c.Storage.AlertsPath = "data/notifications.jsonl"
	}
}

func applyEnvOverrides(c *Root) {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		c.Storage.Postgres.DSN = dsn
	}
	if token := os.Getenv("PUSH_TOKEN"); token != "" {
		c.Alerts.PushToken = token
	}
}

// DefaultScoreWeights is the convex combination applied when the config file
// carries no explicit weights. Sums to 1.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Momentum:      0.25,
		Volume:        0.20,
		VolumeZScore:  0.05,
		MACD:          0.10,
		RSI:           0.10,
		Trend:         0.10,
		InvVolatility: 0.05,
		SR:            0.10,
		Confidence:    0.05,
	}
}
