package netfs

import (
	"os"
	"path/filepath"

	"github.com/gobeaver/beaver-kit/config"
)

// Settings holds the process-wide backend options.
type Settings struct {
	// FTP: use passive data connections. The FTP client only supports
	// passive mode; false is reported with a warning and otherwise ignored.
	FTPUsePassive bool `env:"NETFS_FTP_USEPASSIVE,default:true"`

	// SFTP options. Empty paths resolve below ~/.ssh.
	SFTPKnownHosts    string `env:"NETFS_SFTP_KNOWN_HOSTS"`
	SFTPPrivateKey    string `env:"NETFS_SFTP_PRIVATE_KEY"`
	SFTPPassphrase    string `env:"NETFS_SFTP_PASSPHRASE"`
	SFTPPassword      string `env:"NETFS_SFTP_PASSWORD"` // used when the URI has none
	SFTPStrictHostKey bool   `env:"NETFS_SFTP_STRICT_HOST_KEY,default:false"`

	// SMB NTLM domain, overridden by a "domain;user" URI prefix
	SMBDomain string `env:"NETFS_SMB_DOMAIN"`

	// S3 options
	S3Region          string `env:"NETFS_S3_REGION,default:us-east-1"`
	S3Endpoint        string `env:"NETFS_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"NETFS_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"NETFS_S3_SECRET_ACCESS_KEY"`
	S3ForcePathStyle  bool   `env:"NETFS_S3_FORCE_PATH_STYLE,default:false"`

	// Scheme table file (YAML). Empty means the built-in table.
	RegistryFile string `env:"NETFS_REGISTRY_FILE"`

	LogLevel string `env:"NETFS_LOG_LEVEL,default:info"`
}

// DefaultSettings returns the defaults without reading the environment.
func DefaultSettings() *Settings {
	return &Settings{
		FTPUsePassive: true,
		S3Region:      "us-east-1",
		LogLevel:      "info",
	}
}

// GetSettings returns settings loaded from environment
func GetSettings() (*Settings, error) {
	s := &Settings{}
	if err := config.Load(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSettings loads settings from environment variables carrying prefix.
func LoadSettings(prefix string) (*Settings, error) {
	s := &Settings{}
	if err := config.Load(s, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return s, nil
}

// KnownHostsFile returns the known_hosts path, defaulting to ~/.ssh/known_hosts.
func (s *Settings) KnownHostsFile() string {
	if s.SFTPKnownHosts != "" {
		return s.SFTPKnownHosts
	}
	return sshFile("known_hosts")
}

// PrivateKeyFile returns the private key path, defaulting to ~/.ssh/id_rsa.
func (s *Settings) PrivateKeyFile() string {
	if s.SFTPPrivateKey != "" {
		return s.SFTPPrivateKey
	}
	return sshFile("id_rsa")
}

func sshFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", name)
}
