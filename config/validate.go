package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations that cannot produce a working node.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 {
		return fmt.Errorf("config: log rotation settings must not be negative")
	}
	if c.Contract.CommissionPercentage > 100 || c.Contract.BonusPercentage > 100 {
		return fmt.Errorf("config: contract percentages must be within [0,100]")
	}
	if c.Contract.CommissionPercentage+c.Contract.BonusPercentage > 100 {
		return fmt.Errorf("config: contract percentages sum above 100")
	}
	for _, amount := range c.Contract.ValidAmounts {
		if amount == 0 {
			return fmt.Errorf("config: contract denominations must be positive")
		}
	}
	return nil
}
