package blob

import (
	"fmt"
	"net/url"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	Backend string   `mapstructure:"backend"`
	S3      S3Config `mapstructure:"s3"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		return nil
	case BackendS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown blob backend %q", c.Backend)
	}
}

type S3Config struct {
	BucketName   string `mapstructure:"bucket_name"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	// without static keys the aws default credential chain applies
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("access_key and secret_key must be set together")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
		}
	}
	return nil
}

func (c *S3Config) StaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}
