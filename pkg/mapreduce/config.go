package mapreduce

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultSeparator       = "\n---\n"
	DefaultEmptyReportText = "No relevant information was found in the retrieved documents."
)

// Config carries the recognized pipeline options.
type Config struct {
	MaxConcurrency        int           `validate:"gte=1,lte=256"`
	MaxRetries            int           `validate:"gte=0,lte=20"`
	PerCallTimeout        time.Duration `validate:"gte=0"`
	RunTimeout            time.Duration `validate:"gte=0"`
	AllowPartialOnTimeout bool

	// Separator joins extraction texts in the synthesis prompt.
	Separator string `validate:"required"`
	// ShortCircuitOnEmpty skips the synthesis call when nothing informative
	// was extracted and returns EmptyReportText instead.
	ShortCircuitOnEmpty bool
	EmptyReportText     string

	BackoffInitial time.Duration `validate:"gt=0"`
	BackoffMax     time.Duration `validate:"gtefield=BackoffInitial"`
}

// DefaultConfig returns a configuration sized for a rate-limited provider.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  5,
		MaxRetries:      3,
		PerCallTimeout:  60 * time.Second,
		RunTimeout:      10 * time.Minute,
		Separator:       DefaultSeparator,
		EmptyReportText: DefaultEmptyReportText,
		BackoffInitial:  500 * time.Millisecond,
		BackoffMax:      10 * time.Second,
	}
}

var validate = validator.New()

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: config: %v", ErrInvalidInput, err)
	}
	return nil
}

// withDefaults fills zero-valued optional fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.Separator == "" {
		c.Separator = def.Separator
	}
	if c.EmptyReportText == "" {
		c.EmptyReportText = def.EmptyReportText
	}
	if c.BackoffInitial == 0 {
		c.BackoffInitial = def.BackoffInitial
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = def.BackoffMax
		if c.BackoffMax < c.BackoffInitial {
			c.BackoffMax = c.BackoffInitial
		}
	}
	return c
}
