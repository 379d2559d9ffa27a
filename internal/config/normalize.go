package config

import (
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeResolver()
	c.normalizeConsolidation()
	c.normalizeBatch()
	c.normalizeSources()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(valueOr(c.Paths.DataDir, defaultDataDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}
	if c.Paths.PolicyPath, err = expandPath(valueOr(c.Paths.PolicyPath, defaultPolicyPath)); err != nil {
		return err
	}
	c.DataDir = c.Paths.DataDir
	c.LogDir = c.Paths.LogDir
	return nil
}

func (c *Config) normalizeResolver() {
	if c.Resolver.MaxDepth <= 0 {
		c.Resolver.MaxDepth = defaultResolverMaxDepth
	}
	if c.Resolver.MinStrength <= 0 {
		c.Resolver.MinStrength = defaultResolverMinStrength
	}
}

func (c *Config) normalizeConsolidation() {
	if c.Consolidation.AttachThreshold <= 0 {
		c.Consolidation.AttachThreshold = defaultAttachThreshold
	}
	if c.Consolidation.MergeThreshold <= 0 {
		c.Consolidation.MergeThreshold = defaultMergeThreshold
	}
	if c.Consolidation.TitleWeight <= 0 && c.Consolidation.AuthorWeight <= 0 {
		c.Consolidation.TitleWeight = defaultTitleWeight
		c.Consolidation.AuthorWeight = defaultAuthorWeight
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.WorksetSize <= 0 {
		c.Batch.WorksetSize = defaultWorksetSize
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
	if c.Batch.ItemTimeoutSeconds <= 0 {
		c.Batch.ItemTimeoutSeconds = defaultItemTimeoutSeconds
	}
	if c.Batch.PlateauPasses <= 0 {
		c.Batch.PlateauPasses = defaultPlateauPasses
	}
}

func (c *Config) normalizeSources() {
	for _, src := range []*SourceHTTP{
		&c.Sources.OpenCatalog,
		&c.Sources.Bookmart,
		&c.Sources.NameAuth,
		&c.Sources.VendorCirc,
		&c.Sources.Classify,
	} {
		src.BaseURL = strings.TrimRight(strings.TrimSpace(src.BaseURL), "/")
		src.APIKey = strings.TrimSpace(src.APIKey)
		if src.RequestsPerSecond <= 0 {
			src.RequestsPerSecond = defaultSourceRPS
		}
		if src.TimeoutSeconds <= 0 {
			src.TimeoutSeconds = defaultSourceTimeoutSeconds
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(valueOr(c.Logging.Format, defaultLogFormat)))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(valueOr(c.Logging.Level, defaultLogLevel)))
	c.LogFormat = c.Logging.Format
	c.LogLevel = c.Logging.Level
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
