package common

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

const (
	// size of a data page in byte
	PageSize = 4096
	// default number of frames the buffer pool holds
	BufferPoolDefaultFrameNum = 512
	// number of rows between cancellation checks in executor loops
	CancelCheckInterval = 256
)

// Config carries every knob the cost model and the path enumerator read.
// A zero Config is not usable; start from NewConfig and override.
type Config struct {
	SeqPageCost             float64 `toml:"seq_page_cost"`
	RandomPageCost          float64 `toml:"random_page_cost"`
	CpuTupleCost            float64 `toml:"cpu_tuple_cost"`
	CpuIndexTupleCost       float64 `toml:"cpu_index_tuple_cost"`
	CpuOperatorCost         float64 `toml:"cpu_operator_cost"`
	EffectiveCacheSizePages int64   `toml:"effective_cache_size_pages"`
	WorkMemBytes            int64   `toml:"work_mem_bytes"`

	EnableSeqScan    bool `toml:"enable_seqscan"`
	EnableIndexScan  bool `toml:"enable_indexscan"`
	EnableBitmapScan bool `toml:"enable_bitmapscan"`
	EnableHashJoin   bool `toml:"enable_hashjoin"`
	EnableMergeJoin  bool `toml:"enable_mergejoin"`
	EnableNestLoop   bool `toml:"enable_nestloop"`

	DefaultStatisticsTarget int `toml:"default_statistics_target"`
	// above this many relations the join enumerator gives up on exhaustive
	// dynamic programming and falls back to a greedy order
	JoinDPRelationLimit int `toml:"join_dp_relation_limit"`
}

// NewConfig returns the default knob settings. The page cost ratio (4:1)
// and the cpu cost ladder follow the conventional defaults of disk based
// row stores.
func NewConfig() *Config {
	return &Config{
		SeqPageCost:             1.0,
		RandomPageCost:          4.0,
		CpuTupleCost:            0.01,
		CpuIndexTupleCost:       0.005,
		CpuOperatorCost:         0.0025,
		EffectiveCacheSizePages: 524288,
		WorkMemBytes:            4 * 1024 * 1024,
		EnableSeqScan:           true,
		EnableIndexScan:         true,
		EnableBitmapScan:        true,
		EnableHashJoin:          true,
		EnableMergeJoin:         true,
		EnableNestLoop:          true,
		DefaultStatisticsTarget: 100,
		JoinDPRelationLimit:     8,
	}
}

// LoadConfig reads knob overrides from a TOML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "can't load config file %s", path)
	}
	if cfg.SeqPageCost <= 0 || cfg.RandomPageCost <= 0 {
		return nil, errors.Newf("page costs must be positive: seq=%v random=%v", cfg.SeqPageCost, cfg.RandomPageCost)
	}
	return cfg, nil
}
