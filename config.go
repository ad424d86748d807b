package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/prl900/dc_wms/catalog"
	"github.com/prl900/dc_wms/logger"
	"github.com/prl900/dc_wms/rastreader"
	"github.com/prl900/dc_wms/wms"
)

// Config holds application configuration
type Config struct {
	LayersFile string
	IndexFile  string
	Bucket     string
	DataDir    string
	Log        logger.Options
	WMS        wms.Config
	Addr       string
}

// LoadConfig reads flags, then DCWMS_* environment variables, then defaults
func LoadConfig(cmd *cobra.Command) Config {
	cfg := Config{}
	cfg.LayersFile = getConfigString(cmd, "layers", "DCWMS_LAYERS", "layers.json")
	cfg.IndexFile = getConfigString(cmd, "index", "DCWMS_INDEX", "index.json")
	cfg.Bucket = getConfigString(cmd, "bucket", "DCWMS_BUCKET", "")
	cfg.DataDir = getConfigString(cmd, "data-dir", "DCWMS_DATA_DIR", "./data")

	cfg.Log = logger.FromEnv()
	cfg.Log.Service = "dcwms"
	cfg.Log.Level = getConfigString(cmd, "log-level", "LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getConfigString(cmd, "log-format", "LOG_FORMAT", cfg.Log.Format)

	cfg.Addr = getConfigString(cmd, "addr", "DCWMS_ADDR", ":8080")
	cfg.WMS = wms.Config{
		Title:    getConfigString(cmd, "title", "DCWMS_TITLE", "Data cube WMS"),
		Abstract: getConfigString(cmd, "abstract", "DCWMS_ABSTRACT", ""),
		URL:      getConfigString(cmd, "url", "DCWMS_URL", "http://localhost:8080/wms"),
		MaxArea:  getConfigFloat(cmd, "max-area", "DCWMS_MAX_AREA", wms.DefaultMaxArea),
		MaxWidth: getConfigInt(cmd, "max-size", "DCWMS_MAX_SIZE", wms.DefaultMaxSize),
		Timeout:  getConfigDuration(cmd, "timeout", "DCWMS_TIMEOUT", wms.DefaultTimeout),
	}
	cfg.WMS.MaxHeight = cfg.WMS.MaxWidth
	return cfg
}

// loadCatalog reads the layer catalog and dataset index. Layers without
// advertised dates take the acquisition days of their product from the index.
func (c *Config) loadCatalog() (catalog.Layers, *rastreader.Index, error) {
	layers, err := catalog.ReadLayers(c.LayersFile)
	if err != nil {
		return nil, nil, err
	}
	idx, err := rastreader.ReadIndex(c.IndexFile)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range layers.Names() {
		if l := layers[name]; len(l.Dates) == 0 {
			l.SetDates(idx.Dates(l.Product))
		}
	}
	return layers, idx, nil
}

// Open builds the WMS service over the catalog, the index and the blob store.
func (c *Config) Open(ctx context.Context, log *logger.Logger) (*wms.Service, error) {
	layers, idx, err := c.loadCatalog()
	if err != nil {
		return nil, err
	}

	var store rastreader.BlobStore = rastreader.DirStore{Root: c.DataDir}
	if c.Bucket != "" {
		if store, err = rastreader.NewBucketStore(ctx, c.Bucket); err != nil {
			return nil, err
		}
	}
	log.Info().
		Int("layers", len(layers)).
		Int("datasets", idx.Len()).
		Str("bucket", c.Bucket).
		Str("data_dir", c.DataDir).
		Msg("catalog loaded")

	archive := rastreader.NewArchive(idx, store, log.With().Str("component", "archive").Logger())
	return wms.NewService(c.WMS, layers, archive, log)
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
		return f.Value.String()
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if n, err := strconv.Atoi(getConfigString(cmd, flagName, envName, "")); err == nil {
		return n
	}
	return defaultValue
}

// getConfigFloat gets a float64 value from flag, then env, then default
func getConfigFloat(cmd *cobra.Command, flagName, envName string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(getConfigString(cmd, flagName, envName, ""), 64); err == nil {
		return f
	}
	return defaultValue
}

// getConfigDuration gets a duration value from flag, then env, then default
func getConfigDuration(cmd *cobra.Command, flagName, envName string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getConfigString(cmd, flagName, envName, "")); err == nil {
		return d
	}
	return defaultValue
}
