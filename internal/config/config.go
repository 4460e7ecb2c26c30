package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lox/keiba/internal/models"
)

//go:embed defaults.yaml
var defaultYAML []byte

// Narrowing modes for pedigree scope counting.
const (
	NarrowCumulative  = "cumulative"
	NarrowIndependent = "independent"
)

// Config is loaded once at startup and never modified afterwards. Components
// receive it, or the part they need, through their constructors.
type Config struct {
	DataDir      string  `yaml:"data_dir" default:"data" validate:"required"`
	CalendarDir  string  `yaml:"calendar_dir" default:"data/RaceCalendar" validate:"required"`
	DBPath       string  `yaml:"db_path" default:"data/keiba.db" validate:"required"`
	FirstYear    int     `yaml:"first_year" default:"2019" validate:"gte=1986,lte=2100"`
	MissingValue float64 `yaml:"missing_value" default:"-1"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`

	HTTP struct {
		DBBaseURL   string        `yaml:"db_base_url" default:"https://db.netkeiba.com" validate:"url"`
		RaceBaseURL string        `yaml:"race_base_url" default:"https://race.netkeiba.com" validate:"url"`
		UserAgent   string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; keiba/1.0)"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		MaxElapsed  time.Duration `yaml:"max_elapsed" default:"2m"`
		Delay       time.Duration `yaml:"delay" default:"1s"`
	} `yaml:"http"`

	Averages struct {
		// SampleMaxFinish is the deepest finishing position included in
		// course time averages; 1 averages winners only.
		SampleMaxFinish int `yaml:"sample_max_finish" default:"1" validate:"gte=1,lte=18"`
	} `yaml:"averages"`

	Pedigree struct {
		Narrowing string `yaml:"narrowing" default:"independent" validate:"oneof=cumulative independent"`
	} `yaml:"pedigree"`

	Scheduler struct {
		Weekday  time.Weekday  `yaml:"weekday" default:"1"`
		Hour     int           `yaml:"hour" default:"6" validate:"gte=0,lte=23"`
		Interval time.Duration `yaml:"interval" default:"1h"`
	} `yaml:"scheduler"`

	Server struct {
		Port string `yaml:"port" default:"8080"`
	} `yaml:"server"`

	Venues []Venue `yaml:"venues" validate:"required,min=1,dive"`
}

// Venue is one JRA racecourse and the courses aggregated for it.
type Venue struct {
	Code int    `yaml:"code" validate:"gte=1,lte=10"`
	Name string `yaml:"name" validate:"required"`
	Slug string `yaml:"slug" validate:"required"`
	Turf []int  `yaml:"turf"`
	Dirt []int  `yaml:"dirt"`
}

// CourseKey is a surface and distance run at a venue.
type CourseKey struct {
	Surface  models.Surface
	Distance int
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return parse(nil)
}

// Load reads the YAML file at path over the built-in defaults. An empty path
// loads the defaults only.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b)
}

func parse(user []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		return nil, fmt.Errorf("parse default config: %w", err)
	}
	if len(user) > 0 {
		if err := yaml.Unmarshal(user, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KEIBA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("KEIBA_CALENDAR_DIR"); v != "" {
		c.CalendarDir = v
	}
	if v := os.Getenv("KEIBA_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("KEIBA_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks struct constraints and that venue codes are unique.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	seen := make(map[int]bool)
	for _, v := range c.Venues {
		if seen[v.Code] {
			return fmt.Errorf("venue code %d listed twice", v.Code)
		}
		seen[v.Code] = true
	}
	return nil
}

var errUnknownVenue = errors.New("unknown venue")

// Venue returns the venue with the given code.
func (c *Config) Venue(code int) (Venue, error) {
	for _, v := range c.Venues {
		if v.Code == code {
			return v, nil
		}
	}
	return Venue{}, fmt.Errorf("%w: %d", errUnknownVenue, code)
}

// VenueCodes returns every configured venue code in order.
func (c *Config) VenueCodes() []int {
	codes := make([]int, 0, len(c.Venues))
	for _, v := range c.Venues {
		codes = append(codes, v.Code)
	}
	return codes
}

// VenueCode returns the code of the venue named exactly name, or -1.
func (c *Config) VenueCode(name string) int {
	for _, v := range c.Venues {
		if v.Name == name {
			return v.Code
		}
	}
	return -1
}

// VenueByName finds the venue whose name occurs in text, as in the 開催
// column of a horse history ("2東京12"). It returns -1 for races run
// elsewhere (local tracks, overseas).
func (c *Config) VenueByName(text string) int {
	for _, v := range c.Venues {
		if strings.Contains(text, v.Name) {
			return v.Code
		}
	}
	return -1
}

// Courses returns the aggregated courses of a venue, turf first.
func (c *Config) Courses(code int) []CourseKey {
	v, err := c.Venue(code)
	if err != nil {
		return nil
	}
	return v.Courses()
}

// Courses returns the venue's courses, turf first.
func (v Venue) Courses() []CourseKey {
	out := make([]CourseKey, 0, len(v.Turf)+len(v.Dirt))
	for _, d := range v.Turf {
		out = append(out, CourseKey{Surface: models.SurfaceTurf, Distance: d})
	}
	for _, d := range v.Dirt {
		out = append(out, CourseKey{Surface: models.SurfaceDirt, Distance: d})
	}
	return out
}

// Names returns a code to name lookup.
func (c *Config) Names() map[int]string {
	m := make(map[int]string, len(c.Venues))
	for _, v := range c.Venues {
		m[v.Code] = v.Name
	}
	return m
}
