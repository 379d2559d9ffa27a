package config

import (
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateConsolidation(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.MaxDepth > 16 {
		return fmt.Errorf("resolver.max_depth %d is unreasonably deep (max 16)", c.Resolver.MaxDepth)
	}
	if c.Resolver.MinStrength > 1 {
		return fmt.Errorf("resolver.min_strength must be within (0, 1], got %v", c.Resolver.MinStrength)
	}
	return nil
}

func (c *Config) validateConsolidation() error {
	for name, value := range map[string]float64{
		"consolidation.attach_threshold": c.Consolidation.AttachThreshold,
		"consolidation.merge_threshold":  c.Consolidation.MergeThreshold,
	} {
		if value > 1 {
			return fmt.Errorf("%s must be within (0, 1], got %v", name, value)
		}
	}
	if c.Consolidation.TitleWeight < 0 || c.Consolidation.AuthorWeight < 0 {
		return fmt.Errorf("consolidation weights must be non-negative")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.WorksetSize > 10000 {
		return fmt.Errorf("batch.workset_size %d exceeds the 10000 cap", c.Batch.WorksetSize)
	}
	return nil
}

func (c *Config) validateSources() error {
	named := map[string]SourceHTTP{
		"sources.open_catalog":       c.Sources.OpenCatalog,
		"sources.bookmart":           c.Sources.Bookmart,
		"sources.name_authority":     c.Sources.NameAuth,
		"sources.vendor_circulation": c.Sources.VendorCirc,
		"sources.classify":           c.Sources.Classify,
	}
	for name, src := range named {
		if src.Enabled && src.BaseURL == "" {
			return fmt.Errorf("%s.base_url is required when the source is enabled", name)
		}
	}
	if c.Sources.VendorCirc.Enabled && c.Sources.VendorCirc.APIKey == "" {
		return fmt.Errorf("sources.vendor_circulation.api_key is required. Set FOLIO_VENDOR_API_KEY or edit the config (create with 'folio config init')")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
