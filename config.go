package sheetedit

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultIdentityColumn is the salesperson column of the commission sheet
const DefaultIdentityColumn = "영업자"

// Config represents configuration for the client
type Config struct {
	Sheet           string             // Worksheet holding the records
	IdentityColumn  string             // Column matched against the signed-in user (default: 영업자)
	CacheTTL        time.Duration      // Lifetime of cached snapshots and store handles (default: 600s)
	Strategy        Strategy           // How edits are written back (default: rows)
	VerifyVersions  bool               // Refuse row writes when the remote row changed since load
	RefreshInterval time.Duration      // Background snapshot refresh (0 disables)
	MaxRetries      int                // Retries for failed loads (default: 3, negative disables)
	RetryInterval   time.Duration      // Base interval for exponential backoff (default: 100ms)
	Columns         ColumnRules        // Type and required checks for edited cells (default: none)
	Logger          logrus.FieldLogger // default: logrus standard logger
	Clock           func() time.Time   // default: time.Now
}

func (c *Config) setDefaults() {
	if c.IdentityColumn == "" {
		c.IdentityColumn = DefaultIdentityColumn
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.Strategy == "" {
		c.Strategy = StrategyRows
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = 3
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}
