package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述一条逻辑连接背后的部署拓扑和连接参数
// 库的调用方直接构造该结构体，CLI通过Load从yaml文件读取
type Config struct {
	// Addrs 节点地址列表
	// 集群模式下作为种子节点，只需要可达其中一个；单节点模式下只取第一个
	Addrs []string `yaml:"addrs"`

	// Cluster 是否为hash-slot分片的集群拓扑
	Cluster bool `yaml:"cluster"`

	// Password 节点的AUTH口令，为空表示不鉴权
	Password string `yaml:"password"`

	// TopologyCacheTimeout 拓扑快照的有效期，超过后下一次路由触发同步刷新
	TopologyCacheTimeout time.Duration `yaml:"topology_cache_timeout"`

	// PoolMaxTotal 每个节点连接池的容量上限，0表示使用池的默认值
	PoolMaxTotal int `yaml:"pool_max_total"`

	// LogLevel zap日志级别: debug/info/warn/error
	LogLevel string `yaml:"log_level"`
}

const defaultTopologyCacheTimeout = 60 * time.Second

// Default 返回带默认值的配置
func Default() *Config {
	return &Config{
		TopologyCacheTimeout: defaultTopologyCacheTimeout,
		LogLevel:             "info",
	}
}

// Load 从yaml文件读取配置，缺省字段取Default的值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UnmarshalYAML 让时长字段接受"5s"、"1m"这样的写法
// 文件中未出现的字段保留已有的值，配合Default使用
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type alias struct {
		Addrs                []string `yaml:"addrs"`
		Cluster              bool     `yaml:"cluster"`
		Password             string   `yaml:"password"`
		TopologyCacheTimeout string   `yaml:"topology_cache_timeout"`
		PoolMaxTotal         int      `yaml:"pool_max_total"`
		LogLevel             string   `yaml:"log_level"`
	}
	a := alias{
		Addrs:                c.Addrs,
		Cluster:              c.Cluster,
		Password:             c.Password,
		TopologyCacheTimeout: c.TopologyCacheTimeout.String(),
		PoolMaxTotal:         c.PoolMaxTotal,
		LogLevel:             c.LogLevel,
	}
	if err := value.Decode(&a); err != nil {
		return err
	}
	timeout, err := time.ParseDuration(a.TopologyCacheTimeout)
	if err != nil {
		return fmt.Errorf("config: invalid topology_cache_timeout: %w", err)
	}
	c.Addrs = a.Addrs
	c.Cluster = a.Cluster
	c.Password = a.Password
	c.TopologyCacheTimeout = timeout
	c.PoolMaxTotal = a.PoolMaxTotal
	c.LogLevel = a.LogLevel
	return nil
}

// Validate 检查配置的完整性并补齐默认值
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return errors.New("config: at least one node address is required")
	}
	if c.TopologyCacheTimeout <= 0 {
		c.TopologyCacheTimeout = defaultTopologyCacheTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}
