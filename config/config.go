package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Worker struct {
		// 生成服务地址（分镜文本/图像/视频统一走 worker）
		Addr string `yaml:"addr"`
		// 单次生成调用的超时（秒），0 表示默认 600
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"worker"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	Auth struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
		// 单租户模式：不解析 token，所有请求使用 owner_id 作为调用者身份。
		// 所有权校验仍然执行（见 auth.Ownership）。
		SingleTenant bool   `yaml:"single_tenant"`
		OwnerID      string `yaml:"owner_id"`
	} `yaml:"auth"`
	Assemble struct {
		FFmpegPath string `yaml:"ffmpeg_path"`
		// 拼接子进程超时（秒），0 表示默认 120
		TimeoutSeconds int `yaml:"timeout_seconds"`
		// 临时工作目录的父目录，空则使用系统默认
		WorkDir string `yaml:"work_dir"`
	} `yaml:"assemble"`
}

var AppConfig *Config

func InitConfig() {
	path := os.Getenv("SCENEFLOW_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("配置文件读取失败: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		log.Fatalf("配置文件解析失败: %v", err)
	}
}
